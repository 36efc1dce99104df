// Package mock provides a test double for the backend.Chat interface.
package mock

import (
	"context"
	"sync"

	"github.com/mindline/voicescreen/pkg/backend"
)

// Chat is a mock implementation of backend.Chat.
type Chat struct {
	mu sync.Mutex

	// NameResult is returned by Name. Defaults to "mock".
	NameResult string

	// Responses supplies one result per Converse call, in order. When
	// exhausted, the last entry repeats.
	Responses []Result

	// Gate, if non-nil, blocks each Converse call until a value is received,
	// letting tests hold a turn in flight.
	Gate chan struct{}

	// ConverseCalls records every request passed to Converse.
	ConverseCalls []backend.Request
}

// Result scripts the outcome of a single Converse call.
type Result struct {
	Response backend.Response
	Err      error
}

// Name returns NameResult or "mock".
func (c *Chat) Name() string {
	if c.NameResult != "" {
		return c.NameResult
	}
	return "mock"
}

// Converse records the call and plays the next scripted Result. With no
// script it echoes the request text.
func (c *Chat) Converse(ctx context.Context, req backend.Request) (backend.Response, error) {
	c.mu.Lock()
	call := len(c.ConverseCalls)
	c.ConverseCalls = append(c.ConverseCalls, req)
	gate := c.Gate
	var scripted *Result
	if len(c.Responses) > 0 {
		r := c.Responses[min(call, len(c.Responses)-1)]
		scripted = &r
	}
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return backend.Response{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return backend.Response{}, err
	}

	if scripted != nil {
		return scripted.Response, scripted.Err
	}
	return backend.Response{Reply: req.Text}, nil
}

// Requests returns a copy of the recorded Converse requests.
func (c *Chat) Requests() []backend.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]backend.Request, len(c.ConverseCalls))
	copy(out, c.ConverseCalls)
	return out
}

var _ backend.Chat = (*Chat)(nil)
