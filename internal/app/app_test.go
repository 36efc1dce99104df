package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/mindline/voicescreen/internal/config"
	"github.com/mindline/voicescreen/internal/conversation"
	"github.com/mindline/voicescreen/internal/safety"
	"github.com/mindline/voicescreen/pkg/backend"
	backendmock "github.com/mindline/voicescreen/pkg/backend/mock"
	"github.com/mindline/voicescreen/pkg/provider/recognizer"
	recmock "github.com/mindline/voicescreen/pkg/provider/recognizer/mock"
	synthmock "github.com/mindline/voicescreen/pkg/provider/synthesizer/mock"
)

func testConfig() *config.Config {
	return &config.Config{
		Backend:  config.BackendConfig{Endpoint: "https://example.com/converse"},
		Greeting: "Hello, let's get started.",
	}
}

func runApp(t *testing.T, a *App) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.Run(ctx)
}

func TestNewRequiresBackend(t *testing.T) {
	t.Parallel()
	if _, err := New(testConfig(), nil); err == nil {
		t.Fatal("want error for nil providers")
	}
	if _, err := New(testConfig(), &Providers{}); err == nil {
		t.Fatal("want error for missing backend")
	}
}

func TestTypedSessionRunsToCompletion(t *testing.T) {
	t.Parallel()
	chat := &backendmock.Chat{Responses: []backendmock.Result{
		{Response: backend.Response{Reply: "How have you been sleeping?"}},
		{Response: backend.Response{Reply: "That's everything, thank you.", Done: true}},
	}}

	var out strings.Builder
	a, err := New(testConfig(), &Providers{Backend: chat},
		WithInput(strings.NewReader("pretty tired lately\nbut managing\n")),
		WithSurface(NewConsoleSurface(&out)),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := runApp(t, a); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if a.Session().Phase() != conversation.PhaseEnded {
		t.Fatalf("want PhaseEnded, got %v", a.Session().Phase())
	}
	reqs := chat.Requests()
	if len(reqs) != 2 || reqs[0].Text != "pretty tired lately" {
		t.Fatalf("unexpected backend turns: %+v", reqs)
	}

	rendered := out.String()
	for _, want := range []string{
		"Hello, let's get started.",
		"[voice unavailable]",
		"How have you been sleeping?",
		"[screening complete]",
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("output missing %q:\n%s", want, rendered)
		}
	}
}

func TestVoiceSessionFlowsTranscripts(t *testing.T) {
	t.Parallel()
	chat := &backendmock.Chat{Responses: []backendmock.Result{
		{Response: backend.Response{Reply: "Thanks for telling me.", Done: true}},
	}}
	rec := &recmock.Provider{Script: []recmock.Outcome{
		{Events: []recognizer.Event{
			{Kind: recognizer.EventSpeechStart},
			{Kind: recognizer.EventFinal, Transcript: recognizer.Transcript{Text: "I've been okay", Confidence: 0.95}},
		}},
	}}
	synth := &synthmock.Provider{}

	a, err := New(testConfig(), &Providers{Backend: chat, Recognizer: rec, Synthesizer: synth},
		WithSurface(conversation.NopSurface{}),
		WithInput(strings.NewReader("")),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := runApp(t, a); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	reqs := chat.Requests()
	if len(reqs) != 1 || reqs[0].Text != "I've been okay" {
		t.Fatalf("transcript did not reach backend: %+v", reqs)
	}
	spoken := synth.Spoken()
	if len(spoken) == 0 || !strings.Contains(strings.Join(spoken, " "), "Thanks for telling me.") {
		t.Fatalf("reply was not spoken: %v", spoken)
	}
}

func TestCrisisUtteranceEndsSession(t *testing.T) {
	t.Parallel()
	chat := &backendmock.Chat{}
	var out strings.Builder
	a, err := New(testConfig(), &Providers{Backend: chat},
		WithInput(strings.NewReader("I want to kill myself\n")),
		WithSurface(NewConsoleSurface(&out)),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := runApp(t, a); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(chat.Requests()) != 0 {
		t.Fatalf("crisis content must not reach the backend: %+v", chat.Requests())
	}
	if a.Session().Phase() != conversation.PhaseCrisis {
		t.Fatalf("want PhaseCrisis, got %v", a.Session().Phase())
	}
	if !strings.Contains(out.String(), "988") {
		t.Fatalf("crisis resources not rendered:\n%s", out.String())
	}
}

func TestResourceFilterNarrowsCrisisContacts(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Safety.Resources = []safety.Resource{
		{Name: "Suicide & Crisis Lifeline", Contact: "988", Country: "US", Kind: safety.KindHotline},
		{Name: "Samaritans", Contact: "116 123", Country: "GB", Kind: safety.KindHotline},
	}
	cfg.Safety.ResourceCountry = "GB"

	var out strings.Builder
	a, err := New(cfg, &Providers{Backend: &backendmock.Chat{}},
		WithInput(strings.NewReader("I want to kill myself\n")),
		WithSurface(NewConsoleSurface(&out)),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := runApp(t, a); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	rendered := out.String()
	if !strings.Contains(rendered, "116 123") {
		t.Fatalf("filtered resource missing:\n%s", rendered)
	}
	if strings.Contains(rendered, "988") {
		t.Fatalf("out-of-country resource rendered:\n%s", rendered)
	}
}

// blockedReader parks Read until the test releases it, standing in for an
// interactive stdin with no pending line.
type blockedReader struct {
	release chan struct{}
}

func (r *blockedReader) Read([]byte) (int, error) {
	<-r.release
	return 0, io.EOF
}

func TestCancelUnblocksTypedInput(t *testing.T) {
	t.Parallel()
	in := &blockedReader{release: make(chan struct{})}
	defer close(in.release)

	a, err := New(testConfig(), &Providers{Backend: &backendmock.Chat{}},
		WithInput(in),
		WithSurface(conversation.NopSurface{}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	// Let the session loop park on input, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run stayed blocked on typed input after cancellation")
	}
}

func TestSessionLifecycleTracksActiveSessions(t *testing.T) {
	// Swaps the global meter provider, so this test must not run in parallel.
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	chat := &backendmock.Chat{Responses: []backendmock.Result{
		{Response: backend.Response{Reply: "That's everything, thank you.", Done: true}},
	}}
	a, err := New(testConfig(), &Providers{Backend: chat},
		WithInput(strings.NewReader("doing alright\n")),
		WithSurface(conversation.NopSurface{}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := runApp(t, a); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var sum *metricdata.Sum[int64]
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == "voicescreen.active_sessions" {
				if s, ok := sm.Metrics[i].Data.(metricdata.Sum[int64]); ok {
					sum = &s
				}
			}
		}
	}
	// An instrument with no recorded measurements exports nothing, so the
	// presence of a data point proves the session loop recorded the gauge.
	if sum == nil || len(sum.DataPoints) == 0 {
		t.Fatal("active_sessions was never recorded")
	}
	if got := sum.DataPoints[0].Value; got != 0 {
		t.Fatalf("want active_sessions back at 0 after the session ended, got %d", got)
	}
}

func TestAdminEndpoints(t *testing.T) {
	t.Parallel()
	a, err := New(testConfig(), &Providers{Backend: &backendmock.Chat{}},
		WithSurface(conversation.NopSurface{}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	srv := a.newAdminServer("127.0.0.1:0")

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz: want 200, got %d", rec.Code)
	}
	if rec := get("/metrics"); rec.Code != http.StatusOK {
		t.Fatalf("metrics: want 200, got %d", rec.Code)
	}
	// The mock backend has no ping support, so readiness reports failure.
	if rec := get("/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: want 503, got %d", rec.Code)
	}
}
