package recognizer

import "fmt"

// ErrorClass categorises capture failures so callers can decide between
// retrying and falling back to text input.
type ErrorClass string

const (
	// ClassNetwork covers transport failures between the client and the
	// recognition service. Retryable.
	ClassNetwork ErrorClass = "network"

	// ClassAudioCapture covers microphone hardware/driver failures after
	// access was granted. Retryable.
	ClassAudioCapture ErrorClass = "audio-capture"

	// ClassAborted covers captures torn down by the platform mid-stream.
	// Retryable.
	ClassAborted ErrorClass = "aborted"

	// ClassNoSpeech means the capture ended without detecting any voice
	// activity. Not retried; the caller prompts the user instead.
	ClassNoSpeech ErrorClass = "no-speech"

	// ClassNoMatch means speech was detected but could not be confidently
	// transcribed. Retried with a short fixed delay.
	ClassNoMatch ErrorClass = "no-match"

	// ClassPermissionDenied means the user refused microphone access.
	// Never retried.
	ClassPermissionDenied ErrorClass = "permission-denied"

	// ClassServiceNotAllowed means the platform forbids the recognition
	// service (e.g., policy or insecure context). Never retried.
	ClassServiceNotAllowed ErrorClass = "service-not-allowed"

	// ClassNotSupported means the platform has no recognition capability at
	// all. Surfaced once at startup; never retried.
	ClassNotSupported ErrorClass = "not-supported"
)

// Retryable reports whether failures of this class may be retried with
// backoff. No-match is handled separately by callers (fixed short delay) and
// reports false here.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ClassNetwork, ClassAudioCapture, ClassAborted:
		return true
	}
	return false
}

// CaptureError is a classified recognition failure.
type CaptureError struct {
	// Class is the failure category.
	Class ErrorClass

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognizer: %s", e.Class)
	}
	return fmt.Sprintf("recognizer: %s: %v", e.Class, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CaptureError) Unwrap() error { return e.Err }

// NewCaptureError wraps err with the given class.
func NewCaptureError(class ErrorClass, err error) *CaptureError {
	return &CaptureError{Class: class, Err: err}
}
