package protocol

// Endpoint paths on the status server, relative to the configured base URL.
const (
	// EventsPath is the server-sent event stream of update and heartbeat events.
	EventsPath = "/api/status/events"

	// QueryPath returns the current snapshot synchronously.
	QueryPath = "/api/status/query"

	// MetaPath returns site metadata (timezone, display options, version).
	MetaPath = "/api/meta"

	// StatusListPath returns the ordered status catalog.
	StatusListPath = "/api/status/list"

	// DefaultProbePath is a path the server does not route; only the edge
	// platform in front of it answers, which is what the probe inspects.
	DefaultProbePath = "/none"
)

// Header names.
const (
	HeaderLastEventID = "Last-Event-ID"
	HeaderClientID    = "X-Client-ID"
	HeaderUserAgent   = "User-Agent"

	// DefaultPlatformHeader marks responses served by an edge platform that
	// buffers streamed responses.
	DefaultPlatformHeader = "X-Vercel-Id"
)

// EventStreamContentType is the media type a push stream must answer with.
const EventStreamContentType = "text/event-stream"
