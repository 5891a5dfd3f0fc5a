// Package statusync keeps a live view of a remote status feed. It prefers
// the push stream, reconnects with capped exponential backoff, treats
// prolonged silence as a failure, and switches permanently to polling when
// the environment probe finds an edge platform that breaks streaming.
//
// Every transition runs on one serialized event queue. Stream callbacks,
// timers and the poll loop only post events to it, so the client's state is
// never touched concurrently and callbacks from a superseded session are
// recognized by their generation and dropped.
package statusync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"

	"presence/internal/clock"
	"presence/pkg/backoff"
	"presence/pkg/poller"
	"presence/pkg/probe"
	"presence/pkg/projector"
	"presence/pkg/protocol"
	"presence/pkg/sse"
)

// Defaults for Config fields left zero.
const (
	DefaultStaleThreshold     = 120 * time.Second
	DefaultStaleCheckInterval = 10 * time.Second
	DefaultMetadataAttempts   = 3
	DefaultMetadataRetryDelay = time.Second
)

// --- Interfaces for testability ---

// Transport opens push streams. *sse.Source implements it.
type Transport interface {
	Open(ctx context.Context, lastEventID string, h sse.Handler) sse.Stream
}

// MetadataSource fetches site metadata and catalog. *api.Client implements it.
type MetadataSource interface {
	Metadata(ctx context.Context) (protocol.Metadata, error)
}

// Prober classifies the environment. *probe.Prober implements it.
type Prober interface {
	Probe(ctx context.Context) (probe.Result, error)
}

// MetadataCache persists the last good metadata. *metacache.Store implements it.
type MetadataCache interface {
	Save(ctx context.Context, baseURL string, meta protocol.Metadata) error
	Load(ctx context.Context, baseURL string) (protocol.Metadata, time.Time, error)
}

// Config wires a Client. Transport, Querier and Prober are required in auto
// mode; poll mode needs only Querier.
type Config struct {
	Mode      protocol.TransportMode // TransportAuto when empty
	Transport Transport
	Querier   poller.Querier
	Prober    Prober
	Metadata  MetadataSource // optional; defaults are used without it
	Cache     MetadataCache  // optional
	CacheKey  string         // server base URL, the cache row key

	Clock   clock.Clock // clock.Real() when nil
	Backoff backoff.Policy

	StaleThreshold     time.Duration
	StaleCheckInterval time.Duration
	PollInterval       time.Duration // poll default when metadata has none

	MetadataAttempts   int
	MetadataRetryDelay time.Duration

	// Visible gates poll requests. Always visible when nil.
	Visible func() bool

	// Local is the zone for receive timestamps. time.Local when nil.
	Local *time.Location

	OnFrame func(projector.Frame)
	OnState func(StateChange)

	Logger *slog.Logger
}

// Client is the status-sync coordinator. Create with New, then Start.
type Client struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger
	queue  eventQueue

	startOnce sync.Once
	stopOnce  sync.Once

	// mu guards the fields below. Start and Stop may race.
	mu            sync.Mutex
	last          StateChange
	ctx           context.Context //nolint:containedctx // lifetime of Start..Stop
	cancel        context.CancelFunc
	stopRequested bool

	// Everything below is owned by the queue.
	meta         protocol.Metadata
	opts         projector.Options
	state        State
	attempt      int
	gen          uint64
	session      *session
	lastEventID  string
	reconnecting bool
	retrySeq     uint64
	retryTimer   clock.Timer
	poll         *poller.Poller
	stopped      bool
}

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("statusync: missing dependency")

// New validates cfg, applies defaults and returns an idle Client.
func New(cfg Config) (*Client, error) {
	if cfg.Mode == "" {
		cfg.Mode = protocol.TransportAuto
	}
	if !cfg.Mode.Valid() {
		return nil, errors.New("statusync: unknown transport mode " + string(cfg.Mode))
	}
	if cfg.Querier == nil {
		return nil, errors.Join(ErrMissingDependency, errors.New("querier"))
	}
	if cfg.Mode == protocol.TransportAuto && (cfg.Transport == nil || cfg.Prober == nil) {
		return nil, errors.Join(ErrMissingDependency, errors.New("transport and prober are required in auto mode"))
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Backoff == (backoff.Policy{}) {
		cfg.Backoff = backoff.Default
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = DefaultStaleThreshold
	}
	if cfg.StaleCheckInterval <= 0 {
		cfg.StaleCheckInterval = DefaultStaleCheckInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = protocol.DefaultRefreshInterval
	}
	if cfg.MetadataAttempts <= 0 {
		cfg.MetadataAttempts = DefaultMetadataAttempts
	}
	if cfg.MetadataRetryDelay <= 0 {
		cfg.MetadataRetryDelay = DefaultMetadataRetryDelay
	}
	if cfg.OnFrame == nil {
		cfg.OnFrame = func(projector.Frame) {}
	}
	if cfg.OnState == nil {
		cfg.OnState = func(StateChange) {}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: logger.With("component", "statusync"),
		state:  StateIdle,
		last:   StateChange{State: StateIdle},
		meta:   protocol.DefaultMetadata(),
	}
	c.meta.RefreshInterval = cfg.PollInterval
	c.opts = c.projectorOptions(c.meta)
	return c, nil
}

// --- Public API ---

// Start fetches metadata (retrying briefly, then falling back to the cache
// and finally to defaults) and starts the configured transport. It blocks
// only for the metadata fetch. Start runs once; later calls do nothing.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.mu.Lock()
		if c.stopRequested {
			c.mu.Unlock()
			return
		}
		c.ctx, c.cancel = context.WithCancel(ctx)
		runCtx := c.ctx
		c.mu.Unlock()

		meta, metaErr := c.loadMetadata(runCtx)

		c.queue.post(func() {
			if c.stopped || runCtx.Err() != nil {
				return
			}
			c.meta = meta
			c.opts = c.projectorOptions(meta)
			if metaErr != nil {
				c.emit(projector.FromError(metaErr))
			}

			if c.cfg.Mode == protocol.TransportPoll {
				c.startPolling(StatePolling, nil)
				return
			}
			c.start()
		})
	})
}

// ReconnectNow cancels any pending backoff, resets the attempt counter and
// connects immediately. It does nothing once polling has taken over.
//
// Like every public method it may drain the event queue on the calling
// goroutine, running OnState, OnFrame and a probe request there. Callers
// whose callbacks hand off to their own loop must not call it from that loop.
func (c *Client) ReconnectNow() {
	c.queue.post(func() {
		if c.stopped || c.state.Terminal() || c.state == StateIdle {
			return
		}
		c.logger.Info("manual reconnect", "state", c.state)
		c.cancelRetry()
		c.attempt = 0
		c.start()
	})
}

// Stop tears down the session, pending timers and the poll loop. Callbacks
// stop shortly after; an event already running completes first.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopRequested = true
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		c.queue.post(func() {
			c.stopped = true
			c.closeSession()
			c.cancelRetry()
			if c.poll != nil {
				c.poll.Stop()
			}
			c.logger.Info("stopped", "state", c.state)
		})
	})
}

// State returns the current connection state. Safe from any goroutine.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.State
}

// Attempt returns the reconnect attempt counter. Safe from any goroutine.
func (c *Client) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last.Attempt
}

// LastChange returns the most recent state change. Safe from any goroutine.
func (c *Client) LastChange() StateChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// --- Transitions (queue only) ---

// start replaces any session with a fresh one and opens its stream.
func (c *Client) start() {
	c.closeSession()

	c.gen++
	s := &session{gen: c.gen, lastMessage: c.clock.Now()}
	c.session = s
	c.setState(StateChange{State: StateConnecting, Attempt: c.attempt})

	s.stream = c.cfg.Transport.Open(c.runContext(), c.lastEventID, sessionHandler{c: c, gen: s.gen})
	s.monitor = &monitor{
		c:         c,
		gen:       s.gen,
		clock:     c.clock,
		interval:  c.cfg.StaleCheckInterval,
		threshold: c.cfg.StaleThreshold,
	}
	s.monitor.arm()
}

// runContext is the Start..Stop lifetime. Background before Start.
func (c *Client) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *Client) current(gen uint64) bool {
	return !c.stopped && c.session != nil && c.session.gen == gen
}

func (c *Client) onOpened(gen uint64) {
	if !c.current(gen) {
		return
	}
	c.session.lastMessage = c.clock.Now()
	c.attempt = 0
	c.setState(StateChange{State: StateOpen})
}

func (c *Client) onEvent(gen uint64, ev sse.Event) {
	if !c.current(gen) {
		return
	}
	c.session.lastMessage = c.clock.Now()
	if ev.ID != "" {
		c.lastEventID = ev.ID
	}

	switch protocol.EventType(ev.Type) {
	case protocol.EventUpdate:
		snap, err := protocol.DecodeSnapshot([]byte(ev.Data))
		if err != nil {
			c.logger.Warn("bad update payload", "err", err, "event_id", ev.ID)
			c.emit(projector.FromError(err))
			return
		}
		c.emit(projector.Project(snap, c.opts, c.clock.Now()))
	case protocol.EventHeartbeat:
		c.logger.Debug("heartbeat", "event_id", ev.ID)
	default:
		c.logger.Debug("ignoring event", "type", ev.Type, "event_id", ev.ID)
	}
}

func (c *Client) onSessionError(gen uint64, err error) {
	if !c.current(gen) {
		return
	}
	c.fail(err)
}

// fail is the single failure path for transport errors and staleness.
func (c *Client) fail(err error) {
	if c.stopped || c.state.Terminal() || c.reconnecting {
		return
	}
	c.logger.Warn("transport failure", "err", err, "attempt", c.attempt)

	c.closeSession()
	c.reconnecting = true

	ctx := c.runContext()
	result, perr := c.cfg.Prober.Probe(ctx)
	if c.stopped || ctx.Err() != nil {
		return
	}
	if result == probe.Incompatible {
		c.reconnecting = false
		c.startPolling(StateDegraded, perr)
		return
	}

	delay := c.cfg.Backoff.Delay(c.attempt)
	c.attempt++
	c.retrySeq++
	seq := c.retrySeq
	retryAt := c.clock.Now().Add(delay)

	c.setState(StateChange{
		State:   StateReconnecting,
		Attempt: c.attempt,
		RetryIn: delay,
		RetryAt: retryAt,
		Err:     err,
	})
	c.retryTimer = c.clock.AfterFunc(delay, func() {
		c.queue.post(func() { c.retryFired(seq) })
	})
}

func (c *Client) retryFired(seq uint64) {
	if c.stopped || !c.reconnecting || seq != c.retrySeq {
		return
	}
	c.reconnecting = false
	c.retryTimer = nil
	c.start()
}

func (c *Client) cancelRetry() {
	c.retrySeq++
	c.reconnecting = false
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Client) closeSession() {
	if c.session == nil {
		return
	}
	c.session.close()
	c.session = nil
}

// startPolling hands over to the poll loop. In auto mode this is the
// permanent Degraded transition.
func (c *Client) startPolling(state State, cause error) {
	c.closeSession()
	c.cancelRetry()
	c.setState(StateChange{State: state, Attempt: c.attempt, Err: cause})

	interval := c.meta.RefreshInterval
	if interval <= 0 {
		interval = c.cfg.PollInterval
	}
	c.poll = poller.New(poller.Config{
		Querier:         c.cfg.Querier,
		Clock:           c.clock,
		Visible:         c.cfg.Visible,
		DefaultInterval: interval,
		Logger:          c.logger,
		Sink: func(snap protocol.StatusSnapshot, err error) {
			c.queue.post(func() { c.onPoll(snap, err) })
		},
	})
	c.poll.Start(c.runContext())
}

func (c *Client) onPoll(snap protocol.StatusSnapshot, err error) {
	if c.stopped {
		return
	}
	if err != nil {
		c.emit(projector.FromError(err))
		return
	}
	c.emit(projector.Project(snap, c.opts, c.clock.Now()))
}

func (c *Client) setState(change StateChange) {
	c.state = change.State
	c.mu.Lock()
	c.last = change
	c.mu.Unlock()

	c.logger.Info("state", "state", change.State, "attempt", change.Attempt, "retry_in", change.RetryIn, "err", change.Err)
	c.cfg.OnState(change)
}

func (c *Client) emit(f projector.Frame) {
	c.cfg.OnFrame(f)
}

func (c *Client) projectorOptions(meta protocol.Metadata) projector.Options {
	opts := projector.OptionsFrom(meta)
	opts.Local = c.cfg.Local
	return opts
}

// --- Metadata ---

// loadMetadata tries the server, then the cache, then defaults. The error is
// non-nil only when the server fetch failed; it is shown once as an error
// frame and the client carries on.
func (c *Client) loadMetadata(ctx context.Context) (protocol.Metadata, error) {
	fallback := protocol.DefaultMetadata()
	fallback.RefreshInterval = c.cfg.PollInterval
	if c.cfg.Metadata == nil {
		return fallback, nil
	}

	var meta protocol.Metadata
	err := retry.New(
		retry.Attempts(uint(c.cfg.MetadataAttempts)), //nolint:gosec // validated positive in New
		retry.Delay(c.cfg.MetadataRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		m, err := c.cfg.Metadata.Metadata(ctx)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	if err == nil {
		c.logger.Info("metadata loaded", "version", meta.Version, "statuses", len(meta.Catalog))
		if c.cfg.Cache != nil {
			if serr := c.cfg.Cache.Save(ctx, c.cfg.CacheKey, meta); serr != nil {
				c.logger.Warn("metadata cache save failed", "err", serr)
			}
		}
		return meta, nil
	}

	c.logger.Warn("metadata fetch failed", "err", err)
	if c.cfg.Cache != nil {
		cached, fetched, cerr := c.cfg.Cache.Load(ctx, c.cfg.CacheKey)
		if cerr == nil {
			c.logger.Info("using cached metadata", "fetched_at", fetched)
			return cached, nil
		}
		c.logger.Warn("metadata cache unavailable", "err", cerr)
	}
	return fallback, err
}
