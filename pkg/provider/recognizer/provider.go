// Package recognizer defines the Provider interface for speech recognition
// capabilities.
//
// A recognizer provider wraps whatever platform capability can turn microphone
// audio into text: a browser speech API relayed over a gateway, a hosted
// streaming service, or a test double. The central abstraction is Session:
// once opened, a session emits a stream of [Event] values (speech detected,
// final transcript, classified error) until it is closed.
//
// Providers never retry on their own and never render user-facing text; retry
// policy and fallback messaging belong to the caller (see internal/speech).
// Implementations must be safe for concurrent use.
package recognizer

import "context"

// StreamConfig describes recognition hints for a new session.
type StreamConfig struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider pick its default.
	Language string

	// InterimResults requests speech-start events as soon as voice activity
	// is detected, before a final transcript is available. Providers that
	// cannot detect speech onset may ignore this and emit finals only.
	InterimResults bool
}

// Transcript is a single recognition result.
type Transcript struct {
	// Text is the recognised utterance text.
	Text string

	// Confidence is the provider's confidence in [0, 1]. Providers that do
	// not score results report 1.
	Confidence float64
}

// EventKind discriminates the values emitted on a session's event stream.
type EventKind int

const (
	// EventSpeechStart signals that voice activity was detected. At most one
	// is emitted per session, always before any EventFinal.
	EventSpeechStart EventKind = iota

	// EventFinal carries the authoritative transcript for the capture.
	EventFinal

	// EventError carries a classified capture failure. The session is dead
	// after emitting it.
	EventError
)

// Event is one item on a session's event stream.
type Event struct {
	Kind EventKind

	// Transcript is set when Kind is EventFinal.
	Transcript Transcript

	// Err is set when Kind is EventError. It is always a [*CaptureError].
	Err error
}

// Session is one open microphone capture. The caller owns its lifetime and
// must call Close when done; closing releases the microphone.
type Session interface {
	// Events returns the session's event stream. The channel is closed when
	// the session ends, whether by a final result, an error, or Close.
	Events() <-chan Event

	// Close aborts the capture and releases the microphone. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any speech recognition backend.
type Provider interface {
	// Name returns a short identifier for logs and metrics (e.g., "remote").
	Name() string

	// Open requests microphone access and starts a capture session.
	// It returns a [*CaptureError] with [ClassPermissionDenied] when the
	// user refuses microphone access, and other classes for transport-level
	// failures.
	Open(ctx context.Context, cfg StreamConfig) (Session, error)
}
