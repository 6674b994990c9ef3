// Package clock provides an injectable time source so timer-driven code
// (token expiry checks, refresh scheduling) can be tested deterministically.
package clock

import "time"

// Clock is the subset of the time package used by iiifgate.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f on its own goroutine (real) or synchronously during
	// Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing. It reports false if the call
	// already fired or was already stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
