package protocol

// EventType names an event on the push stream.
type EventType string

const (
	EventUpdate    EventType = "update"    // Payload is a full StatusSnapshot.
	EventHeartbeat EventType = "heartbeat" // Liveness only, payload is empty.
)

// Valid reports whether t is one of the two known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventUpdate, EventHeartbeat:
		return true
	default:
		return false
	}
}

// TransportMode selects how the client receives status.
type TransportMode string

const (
	TransportAuto TransportMode = "auto" // Push stream, falling back to polling when the edge breaks it.
	TransportPoll TransportMode = "poll" // Poll only.
)

// Valid reports whether m is a known transport mode.
func (m TransportMode) Valid() bool {
	switch m {
	case TransportAuto, TransportPoll:
		return true
	default:
		return false
	}
}
