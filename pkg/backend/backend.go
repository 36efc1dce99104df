// Package backend defines the interface to the conversational screening
// service that generates assistant replies, plus a JSON-over-HTTP client for
// it. The front end treats the service as a black box: it sends the user's
// utterance with session and question context and receives the next thing to
// say.
package backend

import (
	"context"
	"fmt"
	"time"
)

// QuestionContext identifies the screening question a user utterance answers.
type QuestionContext struct {
	// ID is the service-assigned question identifier.
	ID string `json:"id"`
	// Number is the 1-based position within the questionnaire.
	Number int `json:"number"`
	// SelfHarmProbe marks questions that ask directly about self-harm, which
	// the front end screens with stricter rules.
	SelfHarmProbe bool `json:"self_harm_probe"`
}

// Request is a single conversational turn sent to the service.
type Request struct {
	// SessionID correlates turns belonging to one screening session.
	SessionID string `json:"session_id"`
	// Text is the user's utterance.
	Text string `json:"text"`
	// Question is the question the utterance answers, if known.
	Question *QuestionContext `json:"question,omitempty"`
	// Annotations carries front-end flags the service should factor into its
	// reply, e.g. that distress language was noticed.
	Annotations []string `json:"annotations,omitempty"`
}

// Response is the service's reply to one turn.
type Response struct {
	// Reply is the assistant text to speak and display.
	Reply string `json:"reply"`
	// NextQuestion is the question the conversation moves to, if the service
	// advanced the flow.
	NextQuestion *QuestionContext `json:"next_question,omitempty"`
	// Done reports that the service considers the screening complete.
	Done bool `json:"done"`
}

// Chat generates assistant replies for user utterances.
//
// Implementations must honour ctx cancellation and deadlines; the caller
// bounds every turn with a timeout and treats expiry like any other failure.
type Chat interface {
	// Name returns the implementation name for logs and health reports.
	Name() string

	// Converse sends one turn and returns the service's reply.
	Converse(ctx context.Context, req Request) (Response, error)
}

// StatusError reports a non-success HTTP status from the service.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
	// Body is a truncated copy of the response body, for diagnostics.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// DefaultTimeout bounds a single Converse round trip when the caller's
// context carries no earlier deadline.
const DefaultTimeout = 15 * time.Second
