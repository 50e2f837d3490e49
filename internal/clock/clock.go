// Package clock abstracts wall time and timer scheduling so debounced flushes,
// deferred callbacks and retry loops can be driven deterministically in tests.
package clock

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock is the time source used by every component of the agent.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is backed by the runtime timers.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Defer runs f on a later turn, never on the caller's stack.
func Defer(c Clock, f func()) {
	c.AfterFunc(0, f)
}
