package statusync

import (
	"time"

	"presence/pkg/sse"
)

// session is one push connection attempt and everything tied to it. A new
// session, with a new generation, is built for every (re)connect; the old one
// is torn down first.
type session struct {
	gen         uint64
	stream      sse.Stream
	monitor     *monitor
	lastMessage time.Time
}

func (s *session) close() {
	if s.monitor != nil {
		s.monitor.stop()
	}
	if s.stream != nil {
		s.stream.Close()
	}
}

// sessionHandler forwards a stream's callbacks into the client's queue,
// tagged with the session generation so callbacks from a retired session are
// dropped.
type sessionHandler struct {
	c   *Client
	gen uint64
}

func (h sessionHandler) Opened() {
	h.c.queue.post(func() { h.c.onOpened(h.gen) })
}

func (h sessionHandler) Event(ev sse.Event) {
	h.c.queue.post(func() { h.c.onEvent(h.gen, ev) })
}

func (h sessionHandler) Failed(err error) {
	h.c.queue.post(func() { h.c.onSessionError(h.gen, err) })
}
