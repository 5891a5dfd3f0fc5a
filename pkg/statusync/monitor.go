package statusync

import (
	"time"

	"presence/internal/clock"
	"presence/pkg/protocol"
)

// monitor is one session's staleness watchdog. It checks every interval
// whether the session has been silent longer than threshold.
type monitor struct {
	c         *Client
	gen       uint64
	clock     clock.Clock
	interval  time.Duration
	threshold time.Duration
	timer     clock.Timer
}

func (m *monitor) arm() {
	m.timer = m.clock.AfterFunc(m.interval, func() {
		m.c.queue.post(func() { m.check() })
	})
}

func (m *monitor) stop() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// check runs on the client's queue.
func (m *monitor) check() {
	c := m.c
	s := c.session
	if c.stopped || s == nil || s.gen != m.gen || s.monitor != m {
		return
	}
	// A reconnect in flight owns recovery; the monitor goes quiet until the
	// next session brings its own.
	if c.reconnecting {
		return
	}

	silence := c.clock.Now().Sub(s.lastMessage)
	if silence > m.threshold {
		c.logger.Warn("session stale", "silence", silence, "threshold", m.threshold)
		c.fail(&protocol.StaleError{Silence: silence, Threshold: m.threshold})
		return
	}
	m.arm()
}
