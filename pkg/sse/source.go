package sse

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"sync"

	"presence/pkg/protocol"
)

// Handler receives the lifecycle of one stream. Calls arrive on the stream's
// reader goroutine, in order: Opened at most once, then Events, then Failed
// at most once. After Close returns, at most one call already in progress
// may still land; callers that need a hard cut guard with their own token.
type Handler interface {
	Opened()
	Event(ev Event)
	Failed(err error)
}

// Stream is an open (or opening) event stream.
type Stream interface {
	// Close aborts the stream. It does not wait for the reader goroutine and
	// is safe to call from a Handler method and more than once.
	Close()
}

// Source opens event streams against one URL.
type Source struct {
	// Client must not set an overall Timeout: the stream is long-lived.
	Client *http.Client
	URL    string
	Header http.Header
	Logger *slog.Logger
}

// Open starts a stream in the background and returns immediately. A
// non-empty lastEventID is sent as Last-Event-ID so the server can resume.
// Failures (connection, non-200 status, wrong content type, read error,
// server closing the stream) arrive as a *protocol.TransportError.
func (s *Source) Open(ctx context.Context, lastEventID string, h Handler) Stream {
	ctx, cancel := context.WithCancel(ctx)
	st := &stream{cancel: cancel}
	go s.run(ctx, lastEventID, h)
	return st
}

func (s *Source) run(ctx context.Context, lastEventID string, h Handler) {
	logger := s.logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, http.NoBody)
	if err != nil {
		h.Failed(&protocol.TransportError{Op: "open event stream", Err: err})
		return
	}
	for k, vs := range s.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", protocol.EventStreamContentType)
	req.Header.Set("Cache-Control", "no-cache")
	if lastEventID != "" {
		req.Header.Set(protocol.HeaderLastEventID, lastEventID)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req) //nolint:bodyclose // closed below on every path
	if err != nil {
		if ctx.Err() == nil {
			h.Failed(&protocol.TransportError{Op: "open event stream", Err: err})
		}
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if ctx.Err() == nil {
			h.Failed(&protocol.TransportError{Op: "open event stream", Err: fmt.Errorf("unexpected status %s", resp.Status)})
		}
		return
	}
	if mt, _, perr := mime.ParseMediaType(resp.Header.Get("Content-Type")); perr != nil || mt != protocol.EventStreamContentType {
		if ctx.Err() == nil {
			h.Failed(&protocol.TransportError{
				Op:  "open event stream",
				Err: fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")),
			})
		}
		return
	}

	if ctx.Err() != nil {
		return
	}
	logger.Debug("event stream open", "url", s.URL, "last_event_id", lastEventID)
	h.Opened()

	scanner := NewScanner(resp.Body)
	for scanner.Next() {
		if ctx.Err() != nil {
			return
		}
		h.Event(scanner.Event())
	}

	if ctx.Err() != nil {
		return
	}
	cause := scanner.Err()
	if cause == nil {
		cause = protocol.ErrStreamClosed
	}
	h.Failed(&protocol.TransportError{Op: "read event stream", Err: cause})
}

func (s *Source) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

type stream struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (s *stream) Close() {
	s.once.Do(s.cancel)
}
