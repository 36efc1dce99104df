package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a deterministic [Clock] for tests. Time only moves when the test
// calls [Fake.Advance]; timer callbacks run synchronously on the advancing
// goroutine, in deadline order.
//
// All methods are safe for concurrent use.
type Fake struct {
	mu        sync.Mutex
	now       time.Time
	timers    []*fakeTimer
	durations []time.Duration
}

// NewFake creates a Fake clock starting at a fixed, arbitrary instant.
func NewFake() *Fake {
	return &Fake{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now implements [Clock].
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc implements [Clock]. A non-positive duration fires on the next
// Advance call, not immediately.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, deadline: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	f.durations = append(f.durations, d)
	return t
}

// Durations returns every duration ever requested via AfterFunc, in call
// order, including timers that were later stopped.
func (f *Fake) Durations() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.durations))
	copy(out, f.durations)
	return out
}

// Advance moves the fake time forward by d and fires, in deadline order,
// every timer whose deadline has been reached.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now

	var due []*fakeTimer
	remaining := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped && !t.deadline.After(now) {
			due = append(due, t)
		} else if !t.stopped {
			remaining = append(remaining, t)
		}
	}
	f.timers = remaining
	f.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.fire()
	}
}

// Pending returns the number of armed, unfired timers. Useful for asserting
// that a component tore its timers down.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	fn       func()

	mu      sync.Mutex
	stopped bool
	fired   bool
}

// Stop implements [Timer].
func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	fn := t.fn
	t.mu.Unlock()
	fn()
}
