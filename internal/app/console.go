package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/mindline/voicescreen/internal/conversation"
	"github.com/mindline/voicescreen/internal/presence"
	"github.com/mindline/voicescreen/internal/safety"
	"github.com/mindline/voicescreen/internal/speech"
)

// PresenceObserver is implemented by surfaces that render avatar state.
type PresenceObserver interface {
	PresenceChanged(c presence.Change)
}

// ConsoleSurface renders the conversation to a terminal. It stands in for
// the product UI so the pipeline can be exercised end to end from a shell.
type ConsoleSurface struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSurface creates a ConsoleSurface writing to w.
func NewConsoleSurface(w io.Writer) *ConsoleSurface {
	return &ConsoleSurface{w: w}
}

func (c *ConsoleSurface) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// UserMessage implements [conversation.Surface].
func (c *ConsoleSurface) UserMessage(text string) {
	c.printf("you: %s\n", text)
}

// AssistantMessage implements [conversation.Surface].
func (c *ConsoleSurface) AssistantMessage(text string) {
	c.printf("assistant: %s\n", text)
}

// InputFallback implements [conversation.Surface].
func (c *ConsoleSurface) InputFallback(_ speech.FallbackReason, guidance string) {
	c.printf("[voice unavailable] %s\n", guidance)
}

// SupportResources implements [conversation.Surface].
func (c *ConsoleSurface) SupportResources(resources []safety.Resource) {
	c.printf("support resources:\n")
	for _, r := range resources {
		c.printf("  %s: %s\n", r.Name, r.Contact)
	}
}

// ScreeningEnded implements [conversation.Surface].
func (c *ConsoleSurface) ScreeningEnded() {
	c.printf("[screening complete]\n")
}

// PresenceChanged implements [PresenceObserver].
func (c *ConsoleSurface) PresenceChanged(change presence.Change) {
	c.printf("-- %s\n", change.To.Status())
}

var _ conversation.Surface = (*ConsoleSurface)(nil)
var _ PresenceObserver = (*ConsoleSurface)(nil)
