package speech

import (
	"errors"
	"fmt"

	"github.com/mindline/voicescreen/pkg/provider/recognizer"
)

// ErrInterrupted rejects a speech request whose playback was cancelled by a
// preempting request, a Stop call, or session teardown.
var ErrInterrupted = errors.New("speech: interrupted")

// ErrNoProvider is returned by Listen when no recognition capability is
// configured.
var ErrNoProvider = errors.New("speech: no recognition provider")

// FallbackReason names why voice input cannot proceed, so the caller can
// switch to text input without ambiguity.
type FallbackReason string

const (
	// ReasonMicrophoneDenied covers permission and capability refusals.
	ReasonMicrophoneDenied FallbackReason = "microphone_denied"

	// ReasonNetworkError covers exhausted retries on transport-level failures.
	ReasonNetworkError FallbackReason = "network_error"

	// ReasonNoSpeech means no voice activity was detected before the
	// listening timeout.
	ReasonNoSpeech FallbackReason = "no_speech_detected"

	// ReasonNotRecognized means speech was detected but never produced a
	// usable transcript.
	ReasonNotRecognized FallbackReason = "speech_not_recognized"
)

// FallbackError signals that voice input failed and the caller should offer
// text input instead.
type FallbackError struct {
	// Reason is the machine-readable fallback cause.
	Reason FallbackReason

	// Cause is the final underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *FallbackError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("speech: fallback requested: %s", e.Reason)
	}
	return fmt.Sprintf("speech: fallback requested: %s: %v", e.Reason, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *FallbackError) Unwrap() error { return e.Cause }

// fallbackReasonFor maps an exhausted or non-retryable error class to the
// reason surfaced to the caller.
func fallbackReasonFor(class recognizer.ErrorClass) FallbackReason {
	switch class {
	case recognizer.ClassPermissionDenied, recognizer.ClassServiceNotAllowed, recognizer.ClassNotSupported:
		return ReasonMicrophoneDenied
	case recognizer.ClassNoSpeech:
		return ReasonNoSpeech
	case recognizer.ClassNoMatch:
		return ReasonNotRecognized
	default:
		return ReasonNetworkError
	}
}
