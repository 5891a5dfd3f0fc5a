// Package sse reads server-sent event streams: a line scanner for the
// text/event-stream format and an HTTP Source that delivers a stream's
// lifecycle (opened, events, failure) to a Handler.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is one dispatched server-sent event.
type Event struct {
	// ID is the stream's last event ID at dispatch time. Per the event
	// stream format it carries over from earlier events until an "id:" line
	// changes it.
	ID string

	// Type is the "event:" field, empty for the default type.
	Type string

	// Data joins the event's "data:" lines with newlines. A bare "data:" line
	// counts, so an event whose only data line is empty is still dispatched.
	Data string
}

// Scanner reads events from an io.Reader.
//
//	scanner := NewScanner(body)
//	for scanner.Next() {
//	    ev := scanner.Event()
//	}
//	if err := scanner.Err(); err != nil {
//	    // read failure; nil means clean EOF
//	}
type Scanner struct {
	reader      *bufio.Reader
	current     Event
	lastEventID string
	err         error
}

// NewScanner creates a scanner that reads events from reader.
func NewScanner(reader io.Reader) *Scanner {
	return &Scanner{
		reader: bufio.NewReaderSize(reader, 64*1024),
	}
}

// Next advances to the next event. It returns false at EOF or on a read
// error; call Err to tell them apart.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	s.current = Event{}

	var dataLines []string
	var eventType string
	hasData := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			s.err = err
			if err == io.EOF && hasData {
				s.current = Event{ID: s.lastEventID, Type: eventType, Data: strings.Join(dataLines, "\n")}
				return true
			}
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				s.current = Event{ID: s.lastEventID, Type: eventType, Data: strings.Join(dataLines, "\n")}
				return true
			}
			eventType = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, hasColon := strings.Cut(line, ":")
		if !hasColon {
			field, value = line, ""
		} else {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			eventType = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				s.lastEventID = value
			}
		}
	}
}

// Event returns the event parsed by the last successful Next.
func (s *Scanner) Event() Event {
	return s.current
}

// LastEventID returns the most recent id seen on the stream, including ids
// on blocks that carried no data.
func (s *Scanner) LastEventID() string {
	return s.lastEventID
}

// Err returns the read error that stopped the scanner, or nil on clean EOF.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
