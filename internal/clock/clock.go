// Package clock abstracts time for components that arm timeouts, so tests can
// drive timers deterministically instead of sleeping on the wall clock.
package clock

import "time"

// Timer is a single armed timeout created by [Clock.AfterFunc].
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from firing. Stopping an already-fired or already-stopped
	// timer is safe.
	Stop() bool
}

// Clock creates timers and reports the current time. The zero-configuration
// production implementation is [System]; tests use [Fake].
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc arms a timer that invokes fn once after d has elapsed.
	// fn runs on its own goroutine in the system implementation.
	AfterFunc(d time.Duration, fn func()) Timer
}

// System is a [Clock] backed by the time package.
type System struct{}

// Now implements [Clock].
func (System) Now() time.Time { return time.Now() }

// AfterFunc implements [Clock].
func (System) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
