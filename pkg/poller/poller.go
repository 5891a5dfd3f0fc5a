// Package poller runs the pull fallback: a cancellable task that queries the
// server, hands the result to a sink, and re-arms itself with the interval the
// server suggests.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"presence/internal/clock"
	"presence/pkg/protocol"
)

// Querier pulls one snapshot. *api.Client implements it.
type Querier interface {
	Query(ctx context.Context) (protocol.StatusSnapshot, error)
}

// Sink receives every poll outcome. On failure the snapshot is zero and err
// is a *protocol.PollError.
type Sink func(snap protocol.StatusSnapshot, err error)

// Config holds the Poller's collaborators.
type Config struct {
	Querier Querier
	Sink    Sink
	Clock   clock.Clock // clock.Real() when nil

	// Visible reports whether anyone is looking. Ticks while it returns
	// false skip the request but keep the schedule. Always visible when nil.
	Visible func() bool

	// DefaultInterval applies when a response carries no refresh hint.
	// protocol.DefaultRefreshInterval when zero.
	DefaultInterval time.Duration

	Logger *slog.Logger
}

// Poller is safe for concurrent use. Stop may be called from the sink.
type Poller struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	gen      uint64 // bumped by Start and Stop; stale ticks compare against it
	armID    uint64
	timer    clock.Timer
	interval time.Duration
	cancel   context.CancelFunc
	ctx      context.Context //nolint:containedctx // lifetime of one Start..Stop run
}

// New returns a stopped Poller.
func New(cfg Config) *Poller {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Visible == nil {
		cfg.Visible = func() bool { return true }
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = protocol.DefaultRefreshInterval
	}
	if cfg.Sink == nil {
		cfg.Sink = func(protocol.StatusSnapshot, error) {}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:      cfg,
		logger:   logger.With("component", "poller"),
		interval: cfg.DefaultInterval,
	}
}

// Start begins polling; the first tick runs immediately. Starting a running
// Poller does nothing. Queries use ctx until Stop.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.gen++
	gen := p.gen
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.logger.Info("poll loop started", "default_interval", p.cfg.DefaultInterval)
	p.arm(gen, 0)
}

// Stop cancels the pending tick and any in-flight query. A tick already
// past its query neither calls the sink nor re-arms.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
	}
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Interval returns the delay the loop will use after the next tick.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running && p.gen == gen
}

func (p *Poller) arm(gen uint64, d time.Duration) {
	p.mu.Lock()
	if !p.running || p.gen != gen {
		p.mu.Unlock()
		return
	}
	p.armID++
	id := p.armID
	p.mu.Unlock()

	// With a zero delay the fake clock runs the tick inside AfterFunc, which
	// re-arms before we get here; armID tells us whether t is still the
	// latest timer.
	t := p.cfg.Clock.AfterFunc(d, func() { p.tick(gen) })

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.gen != gen {
		t.Stop()
		return
	}
	if p.armID == id {
		p.timer = t
	}
}

func (p *Poller) tick(gen uint64) {
	p.mu.Lock()
	if !p.running || p.gen != gen {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.mu.Unlock()

	if !p.cfg.Visible() {
		p.logger.Debug("poll skipped: not visible")
		p.arm(gen, p.Interval())
		return
	}

	snap, err := p.cfg.Querier.Query(ctx)
	if !p.current(gen) {
		return
	}

	if err != nil {
		p.logger.Warn("poll failed", "err", err, "retry_in", p.Interval())
		p.cfg.Sink(protocol.StatusSnapshot{}, &protocol.PollError{Err: err})
	} else {
		next := snap.Refresh
		if next <= 0 {
			next = p.cfg.DefaultInterval
		}
		p.mu.Lock()
		p.interval = next
		p.mu.Unlock()
		p.cfg.Sink(snap, nil)
	}

	p.arm(gen, p.Interval())
}
