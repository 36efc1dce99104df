// Package conversation drives a single screening session: it takes user
// utterances, screens them for safety, consults the conversational backend,
// and coordinates the presence indicator, speech output, and UI surface for
// each turn.
package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindline/voicescreen/pkg/backend"
)

// Phase describes where a session is in its lifecycle.
type Phase int

const (
	// PhaseGreeting covers the session before the first user utterance.
	PhaseGreeting Phase = iota
	// PhaseScreening covers the normal question-and-answer flow.
	PhaseScreening
	// PhaseCrisis is entered when crisis content is detected. The screening
	// flow is terminated and only support content is presented.
	PhaseCrisis
	// PhaseEnded covers a session completed or terminated.
	PhaseEnded
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseGreeting:
		return "greeting"
	case PhaseScreening:
		return "screening"
	case PhaseCrisis:
		return "crisis"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Sender identifies who produced a history entry.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Source identifies the input modality that produced an utterance.
type Source string

const (
	SourceVoice Source = "voice"
	SourceText  Source = "text"
)

// Utterance is one immutable unit of user input. Voice and typed input are
// unified into this value before any processing; downstream code never
// branches on modality beyond the provenance tag.
type Utterance struct {
	Text   string
	Source Source
	At     time.Time
}

// NewUtterance stamps text with its provenance and the current time.
func NewUtterance(text string, src Source) Utterance {
	return Utterance{Text: text, Source: src, At: time.Now()}
}

// Entry is one item of the session transcript.
type Entry struct {
	Sender Sender
	Text   string
	// Source is the input modality for user entries, empty for assistant
	// entries.
	Source Source
	// Annotation carries a safety note attached to the utterance, empty for
	// ordinary turns.
	Annotation string
	At         time.Time
}

// Session holds the mutable state of one screening conversation. All methods
// are safe for concurrent use; the transcript is append-only.
type Session struct {
	id string

	mu             sync.Mutex
	phase          Phase
	history        []Entry
	question       *backend.QuestionContext
	crisisOverride bool
}

// NewSession creates an empty session with a fresh identifier.
func NewSession() *Session {
	return &Session{id: uuid.NewString(), phase: PhaseGreeting}
}

// ID returns the session identifier used to correlate backend turns.
func (s *Session) ID() string {
	return s.id
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Append records a transcript entry, moving a greeting-phase session into
// screening on the first user utterance.
func (s *Session) Append(sender Sender, text, annotation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Entry{Sender: sender, Text: text, Annotation: annotation, At: time.Now()})
	if s.phase == PhaseGreeting && sender == SenderUser {
		s.phase = PhaseScreening
	}
}

// AppendUtterance records a user utterance, preserving its provenance and
// timestamp.
func (s *Session) AppendUtterance(u Utterance, annotation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := u.At
	if at.IsZero() {
		at = time.Now()
	}
	s.history = append(s.history, Entry{Sender: SenderUser, Text: u.Text, Source: u.Source, Annotation: annotation, At: at})
	if s.phase == PhaseGreeting {
		s.phase = PhaseScreening
	}
}

// History returns a copy of the transcript.
func (s *Session) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.history))
	copy(out, s.history)
	return out
}

// CurrentQuestion returns the question the next user utterance answers, or
// nil before the backend has advanced the flow.
func (s *Session) CurrentQuestion() *backend.QuestionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.question == nil {
		return nil
	}
	q := *s.question
	return &q
}

// SetQuestion records the question the flow moved to. A nil q is ignored so
// a backend reply without a question keeps the current one.
func (s *Session) SetQuestion(q *backend.QuestionContext) {
	if q == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *q
	s.question = &copied
}

// EnterCrisis terminates the screening flow and latches the crisis override.
// Once set, the override is never cleared for the life of the session;
// in-flight backend replies observing it must be discarded.
func (s *Session) EnterCrisis() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crisisOverride = true
	s.phase = PhaseCrisis
}

// CrisisOverridden reports whether crisis handling has taken over.
func (s *Session) CrisisOverridden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crisisOverride
}

// End marks the session complete. A session in crisis stays in PhaseCrisis.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseCrisis {
		s.phase = PhaseEnded
	}
}

// Active reports whether the session still accepts user utterances.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseGreeting || s.phase == PhaseScreening
}
