package statusync

import "time"

// --- Connection states ---

// State is the client's connection state.
type State string

// Connection state constants.
const (
	StateIdle         State = "idle"         // Not started.
	StateConnecting   State = "connecting"   // Push stream requested, not yet confirmed.
	StateOpen         State = "open"         // Push stream confirmed.
	StateReconnecting State = "reconnecting" // Waiting out a backoff delay.
	StateDegraded     State = "degraded"     // Push unsupported here; polling for the rest of the process.
	StatePolling      State = "polling"      // Poll-only mode by configuration.
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDegraded || s == StatePolling
}

// StateChange is delivered to OnState on every transition.
type StateChange struct {
	State   State         `json:"state"`
	Attempt int           `json:"attempt"`            // reconnect attempts since the last Open
	RetryIn time.Duration `json:"retry_in,omitempty"` // backoff delay, Reconnecting only
	RetryAt time.Time     `json:"retry_at,omitzero"`  // when the reconnect fires, Reconnecting only
	Err     error         `json:"-"`                  // what caused the transition, if anything
}

// Remaining returns how long until the scheduled reconnect, never negative.
// Zero outside Reconnecting.
func (c StateChange) Remaining(now time.Time) time.Duration {
	if c.State != StateReconnecting || c.RetryAt.IsZero() {
		return 0
	}
	if d := c.RetryAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
