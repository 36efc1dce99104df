package health

import (
	"context"
	"errors"
)

// Pinger is the slice of the backend client the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker reports ready only when the conversational backend answers
// a ping. p may be nil, which always fails: a front end without a backend
// cannot run a screening.
func BackendChecker(p Pinger) Checker {
	return Checker{
		Name: "backend",
		Check: func(ctx context.Context) error {
			if p == nil {
				return errors.New("no backend configured")
			}
			return p.Ping(ctx)
		},
	}
}

// SpeechChecker reports on the configured speech capability. Missing voice
// input is not a failure because the UI falls back to typed input, so
// readiness only requires that synthesis exists for spoken prompts.
func SpeechChecker(hasSynthesizer bool) Checker {
	return Checker{
		Name: "speech",
		Check: func(context.Context) error {
			if !hasSynthesizer {
				return errors.New("no synthesizer configured")
			}
			return nil
		},
	}
}
