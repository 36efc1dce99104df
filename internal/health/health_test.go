package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthzAlwaysOK(t *testing.T) {
	t.Parallel()
	h := New()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("want status ok, got %v", body["status"])
	}
}

func TestReadyzAggregatesCheckers(t *testing.T) {
	t.Parallel()
	h := New(
		Checker{Name: "good", Check: func(context.Context) error { return nil }},
		Checker{Name: "bad", Check: func(context.Context) error { return errors.New("down") }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Status != "fail" {
		t.Fatalf("want fail, got %q", body.Status)
	}
	if body.Checks["good"] != "ok" || !strings.HasPrefix(body.Checks["bad"], "fail: down") {
		t.Fatalf("unexpected checks %v", body.Checks)
	}
}

func TestReadyzAllPassing(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "good", Check: func(context.Context) error { return nil }})
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestBackendChecker(t *testing.T) {
	t.Parallel()
	if err := BackendChecker(stubPinger{}).Check(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := BackendChecker(stubPinger{err: errors.New("refused")}).Check(context.Background()); err == nil {
		t.Fatal("want error from failing ping")
	}
	if err := BackendChecker(nil).Check(context.Background()); err == nil {
		t.Fatal("want error for nil backend")
	}
}

func TestSpeechChecker(t *testing.T) {
	t.Parallel()
	if err := SpeechChecker(true).Check(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := SpeechChecker(false).Check(context.Background()); err == nil {
		t.Fatal("want error without synthesizer")
	}
}
