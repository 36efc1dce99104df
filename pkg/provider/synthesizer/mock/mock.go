// Package mock provides a test double for the synthesizer package.
//
// By default every Speak call succeeds immediately. Set Gate to hold playback
// open so tests can observe preemption and interruption, or script per-call
// errors with Errs.
package mock

import (
	"context"
	"sync"

	"github.com/mindline/voicescreen/pkg/provider/synthesizer"
)

// SpeakCall records a single invocation of Provider.Speak.
type SpeakCall struct {
	// Text is the text passed to Speak.
	Text string
	// Opts are the options passed to Speak.
	Opts synthesizer.Options
}

// Provider is a mock implementation of synthesizer.Provider.
type Provider struct {
	mu sync.Mutex

	// NameResult is returned by Name. Defaults to "mock".
	NameResult string

	// Errs scripts per-call return values, in call order. Calls beyond the
	// slice succeed.
	Errs []error

	// Gate, when non-nil, makes every Speak call block until a value is
	// received from it (or ctx is cancelled). Use an unbuffered channel and
	// send once per utterance to release playback.
	Gate chan struct{}

	// SpeakCalls records every call to Speak, including interrupted ones.
	SpeakCalls []SpeakCall
}

// Name returns NameResult or "mock".
func (p *Provider) Name() string {
	if p.NameResult != "" {
		return p.NameResult
	}
	return "mock"
}

// Speak records the call, optionally blocks on Gate, and returns the next
// scripted error.
func (p *Provider) Speak(ctx context.Context, text string, opts synthesizer.Options) error {
	p.mu.Lock()
	call := len(p.SpeakCalls)
	p.SpeakCalls = append(p.SpeakCalls, SpeakCall{Text: text, Opts: opts})
	gate := p.Gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if call < len(p.Errs) {
		return p.Errs[call]
	}
	return nil
}

// Spoken returns the texts of all recorded calls, in order.
func (p *Provider) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SpeakCalls))
	for i, c := range p.SpeakCalls {
		out[i] = c.Text
	}
	return out
}

var _ synthesizer.Provider = (*Provider)(nil)
