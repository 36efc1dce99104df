// Package synthesizer defines the Provider interface for speech synthesis
// capabilities.
//
// A synthesizer provider wraps whatever platform capability can voice a piece
// of text: a browser speech-synthesis API behind a gateway, a local audio
// stack, or a test double. Playback serialisation is not the provider's job:
// the single-consumer queue in internal/speech guarantees that at most one
// Speak call is in flight at a time.
package synthesizer

import "context"

// Options configures a single synthesis request. Zero values mean "provider
// default".
type Options struct {
	// Voice selects a provider-specific voice identifier.
	Voice string

	// Rate adjusts speaking rate (0.5–2.0, 1.0 = default).
	Rate float64

	// Pitch adjusts pitch (0.0–2.0, 1.0 = default).
	Pitch float64

	// Volume adjusts loudness (0.0–1.0, 1.0 = default).
	Volume float64

	// Language is the BCP-47 language tag for pronunciation.
	Language string
}

// Provider is the abstraction over any speech synthesis backend.
type Provider interface {
	// Name returns a short identifier for logs and metrics (e.g., "noop").
	Name() string

	// Speak voices text and blocks until playback finishes or ctx is
	// cancelled. Cancellation stops playback immediately and returns
	// ctx.Err(). Any other non-nil error is a synthesis failure.
	Speak(ctx context.Context, text string, opts Options) error
}
