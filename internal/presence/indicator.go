// Package presence implements the four-state activity indicator that backs
// the conversation avatar.
//
// The [Indicator] is a small state machine: IDLE, LISTENING, THINKING, and
// SPEAKING, with an optional per-state timeout. When a timeout elapses before
// an external transition, the indicator forces itself back to IDLE and emits
// a distinguished timed-out notification so the orchestrator can re-prompt
// the user.
//
// Transitions are atomic with respect to timeout cancellation: once Set has
// taken the lock, a concurrently firing timeout callback can no longer apply.
// At most one timeout is pending at any time, and it always belongs to the
// current state.
package presence

import (
	"sync"
	"time"

	"github.com/mindline/voicescreen/internal/clock"
)

// State is one of the four indicator states.
type State int

const (
	// StateIdle is the initial state. It has no timeout.
	StateIdle State = iota

	// StateListening indicates the microphone is open.
	StateListening

	// StateThinking indicates a backend request is in flight.
	StateThinking

	// StateSpeaking indicates synthesis playback is active.
	StateSpeaking
)

// String returns the canonical upper-case name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateThinking:
		return "THINKING"
	case StateSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}

// Status returns the user-facing status line for the state.
func (s State) Status() string {
	switch s {
	case StateIdle:
		return "Ready to listen"
	case StateListening:
		return "Listening..."
	case StateThinking:
		return "Thinking..."
	case StateSpeaking:
		return "Speaking..."
	default:
		return ""
	}
}

// Change describes one indicator transition.
type Change struct {
	// From is the state being left.
	From State

	// To is the state being entered.
	To State

	// TimedOut is true when the transition was forced by a state timeout
	// rather than an explicit Set call. To is always StateIdle in that case.
	TimedOut bool

	// At is the transition time.
	At time.Time
}

// Observer receives state-change notifications. The indicator supports a
// single observer; it is invoked outside the indicator's lock, so calling
// back into Set is allowed.
type Observer func(Change)

// Timeouts configures how long the indicator may remain in each non-idle
// state before forcing a return to IDLE. Zero disables the timeout for that
// state. IDLE never times out.
type Timeouts struct {
	Listening time.Duration
	Thinking  time.Duration
	Speaking  time.Duration
}

// Indicator is the presence state machine. All methods are safe for
// concurrent use.
type Indicator struct {
	clk      clock.Clock
	timeouts Timeouts
	observer Observer

	mu             sync.Mutex
	state          State
	lastTransition time.Time
	gen            uint64
	timer          clock.Timer
}

// New creates an Indicator in StateIdle. observer may be nil. A nil clk uses
// the system clock.
func New(timeouts Timeouts, clk clock.Clock, observer Observer) *Indicator {
	if clk == nil {
		clk = clock.System{}
	}
	return &Indicator{
		clk:            clk,
		timeouts:       timeouts,
		observer:       observer,
		state:          StateIdle,
		lastTransition: clk.Now(),
	}
}

// State returns the current state.
func (i *Indicator) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// LastTransition returns when the current state was entered.
func (i *Indicator) LastTransition() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastTransition
}

// Set transitions to target. Setting the current state again is a no-op: no
// notification is emitted and the pending timeout keeps its original clock.
func (i *Indicator) Set(target State) {
	i.mu.Lock()
	if target == i.state {
		i.mu.Unlock()
		return
	}
	change := i.transitionLocked(target, false)
	i.mu.Unlock()

	if i.observer != nil {
		i.observer(change)
	}
}

// Stop cancels any pending timeout. Called at session teardown so no timer
// outlives the session.
func (i *Indicator) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.gen++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
}

// transitionLocked performs the state change, re-arms the timeout for the new
// state, and returns the Change to deliver. Caller holds i.mu.
func (i *Indicator) transitionLocked(target State, timedOut bool) Change {
	i.gen++
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}

	change := Change{From: i.state, To: target, TimedOut: timedOut, At: i.clk.Now()}
	i.state = target
	i.lastTransition = change.At

	if d := i.timeoutFor(target); d > 0 {
		gen := i.gen
		i.timer = i.clk.AfterFunc(d, func() { i.onTimeout(gen) })
	}
	return change
}

// onTimeout forces the indicator back to IDLE if the generation is still
// current. A stale generation means an explicit transition won the race.
func (i *Indicator) onTimeout(gen uint64) {
	i.mu.Lock()
	if gen != i.gen {
		i.mu.Unlock()
		return
	}
	change := i.transitionLocked(StateIdle, true)
	i.mu.Unlock()

	if i.observer != nil {
		i.observer(change)
	}
}

func (i *Indicator) timeoutFor(s State) time.Duration {
	switch s {
	case StateListening:
		return i.timeouts.Listening
	case StateThinking:
		return i.timeouts.Thinking
	case StateSpeaking:
		return i.timeouts.Speaking
	}
	return 0
}
