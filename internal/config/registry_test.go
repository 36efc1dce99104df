package config

import (
	"errors"
	"testing"

	"github.com/mindline/voicescreen/pkg/provider/recognizer"
	recmock "github.com/mindline/voicescreen/pkg/provider/recognizer/mock"
	"github.com/mindline/voicescreen/pkg/provider/synthesizer"
	"github.com/mindline/voicescreen/pkg/provider/synthesizer/noop"
)

func TestRegistryCreateRecognizer(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	var gotEntry ProviderEntry
	r.RegisterRecognizer("mock", func(entry ProviderEntry) (recognizer.Provider, error) {
		gotEntry = entry
		return &recmock.Provider{}, nil
	})

	p, err := r.CreateRecognizer(ProviderEntry{Name: "mock", APIKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Name() != "mock" {
		t.Fatalf("unexpected provider %v", p)
	}
	if gotEntry.APIKey != "key" {
		t.Fatalf("entry not forwarded to factory: %+v", gotEntry)
	}
}

func TestRegistryCreateSynthesizer(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.RegisterSynthesizer("noop", func(ProviderEntry) (synthesizer.Provider, error) {
		return noop.New(), nil
	})

	p, err := r.CreateSynthesizer(ProviderEntry{Name: "noop"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "noop" {
		t.Fatalf("unexpected provider %q", p.Name())
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if _, err := r.CreateRecognizer(ProviderEntry{Name: "ghost"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("want ErrProviderNotRegistered, got %v", err)
	}
	if _, err := r.CreateSynthesizer(ProviderEntry{Name: "ghost"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("want ErrProviderNotRegistered, got %v", err)
	}
}
