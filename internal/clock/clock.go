// Package clock abstracts the two time operations the sync client needs
// (reading the current time and scheduling a callback) so that reconnect
// delays, staleness checks and poll ticks can be driven deterministically in
// tests.
//
// Production code uses Real(). Tests use Fake(start) and call Advance to fire
// due callbacks synchronously, in deadline order, on the calling goroutine.
package clock

import "time"

// Clock is the time source injected into timer-driven components.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer cancels the
	// call. With the real clock f runs on its own goroutine.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from running. It reports whether the call was
	// still pending.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
