package protocol

import (
	"errors"
	"fmt"
	"time"
)

// TransportError is a failure of the push stream or of an HTTP request:
// connection refused, non-200 status, wrong content type, stream closed.
// It is always retried and never fatal.
type TransportError struct {
	Op  string // e.g. "open event stream", "read event stream"
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Op + ": transport failure"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StaleError reports that a session stayed silent longer than the threshold.
type StaleError struct {
	Silence   time.Duration
	Threshold time.Duration
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("no message for %s (threshold %s)",
		e.Silence.Truncate(time.Second), e.Threshold)
}

// EnvironmentIncompatibleError reports that the edge platform in front of the
// server breaks streamed responses. The client switches to polling for the
// rest of the process.
type EnvironmentIncompatibleError struct {
	Header string
	Value  string
}

func (e *EnvironmentIncompatibleError) Error() string {
	return fmt.Sprintf("push transport unsupported behind edge platform (%s: %s)", e.Header, e.Value)
}

// DataError is a payload that failed schema validation: malformed JSON,
// missing fields, a status id outside the catalog.
type DataError struct {
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	if e.Err == nil {
		return "invalid data: " + e.Reason
	}
	return fmt.Sprintf("invalid data: %s: %v", e.Reason, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// PollError is a failed tick of the poll loop.
type PollError struct {
	Err error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll: %v", e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// ErrStreamClosed is wrapped in a TransportError when the server ends the
// event stream.
var ErrStreamClosed = errors.New("event stream closed by server")

// ErrServerUnsuccessful is wrapped when a response arrives with success=false.
var ErrServerUnsuccessful = errors.New("server reported failure")
