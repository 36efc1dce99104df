// Package mock provides test doubles for the recognizer package interfaces.
//
// Use Provider with a Script to drive one outcome per Open call (handy for
// exercising retry policies), or set Session directly for manual control of
// the event stream.
package mock

import (
	"context"
	"sync"

	"github.com/mindline/voicescreen/pkg/provider/recognizer"
)

// OpenCall records a single invocation of Provider.Open.
type OpenCall struct {
	// Ctx is the context passed to Open.
	Ctx context.Context
	// Cfg is the StreamConfig passed to Open.
	Cfg recognizer.StreamConfig
}

// Outcome scripts the result of a single Open call.
type Outcome struct {
	// Err, if non-nil, is returned from Open itself.
	Err error

	// Events are pre-buffered onto the session's event stream, which is then
	// closed. Ignored when Err is set.
	Events []recognizer.Event

	// HoldOpen leaves the event stream open after Events are delivered, so
	// the caller's timeout paths can be exercised.
	HoldOpen bool
}

// Provider is a mock implementation of recognizer.Provider.
type Provider struct {
	mu sync.Mutex

	// NameResult is returned by Name. Defaults to "mock".
	NameResult string

	// Session, if non-nil, is returned from every successful Open and takes
	// precedence over Script.
	Session recognizer.Session

	// Script supplies one Outcome per Open call, in order. When exhausted,
	// the last Outcome repeats.
	Script []Outcome

	// OpenCalls records every call to Open.
	OpenCalls []OpenCall

	// Sessions records every scripted session handed out, in order.
	Sessions []*Session
}

// Name returns NameResult or "mock".
func (p *Provider) Name() string {
	if p.NameResult != "" {
		return p.NameResult
	}
	return "mock"
}

// Open records the call and plays the next scripted Outcome.
func (p *Provider) Open(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	call := len(p.OpenCalls)
	p.OpenCalls = append(p.OpenCalls, OpenCall{Ctx: ctx, Cfg: cfg})

	if p.Session != nil {
		return p.Session, nil
	}

	if len(p.Script) == 0 {
		s := NewSession()
		p.Sessions = append(p.Sessions, s)
		return s, nil
	}

	out := p.Script[min(call, len(p.Script)-1)]
	if out.Err != nil {
		return nil, out.Err
	}

	s := NewSession()
	for _, ev := range out.Events {
		s.events <- ev
	}
	if !out.HoldOpen {
		close(s.events)
		s.closed = true
	}
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// Ensure Provider implements recognizer.Provider at compile time.
var _ recognizer.Provider = (*Provider)(nil)

// Session is a mock implementation of recognizer.Session.
type Session struct {
	mu     sync.Mutex
	events chan recognizer.Event
	closed bool

	// CloseCalls counts invocations of Close.
	CloseCalls int
}

// NewSession creates a Session with a buffered event stream.
func NewSession() *Session {
	return &Session{events: make(chan recognizer.Event, 16)}
}

// Emit places ev on the event stream. Panics if the stream is full or closed;
// tests should size their scripts accordingly.
func (s *Session) Emit(ev recognizer.Event) {
	s.events <- ev
}

// Events implements recognizer.Session.
func (s *Session) Events() <-chan recognizer.Event {
	return s.events
}

// Close implements recognizer.Session. The first call closes the event stream.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

var _ recognizer.Session = (*Session)(nil)
