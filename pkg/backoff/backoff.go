// Package backoff computes reconnect delays for the push transport.
package backoff

import "time"

const (
	// DefaultBase is the delay before the first reconnect.
	DefaultBase = time.Second

	// DefaultCap bounds every delay.
	DefaultCap = 30 * time.Second
)

// Policy is a capped exponential delay: min(Base * 2^attempt, Cap).
type Policy struct {
	Base time.Duration
	Cap  time.Duration
}

// Default is the production policy (1s doubling up to 30s).
var Default = Policy{Base: DefaultBase, Cap: DefaultCap} //nolint:gochecknoglobals // immutable policy value

// Delay returns the wait before reconnect number attempt (0-based). Negative
// attempts are treated as 0. A Cap of zero or less means DefaultCap and a
// Base of zero or less means the Cap. The result is always positive, never
// overflows and never exceeds Cap.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Cap <= 0 {
		p.Cap = DefaultCap
	}
	if attempt < 0 {
		attempt = 0
	}
	if p.Base <= 0 || p.Base >= p.Cap {
		return p.Cap
	}

	d := p.Base
	for i := 0; i < attempt; i++ {
		if d > p.Cap/2 {
			return p.Cap
		}
		d *= 2
	}
	return d
}

// Delay applies the Default policy.
func Delay(attempt int) time.Duration {
	return Default.Delay(attempt)
}
