// Package probe detects edge platforms that silently buffer streamed
// responses, which makes a push stream look connected while delivering
// nothing. The check is one request to a path the server answers trivially,
// looking for a platform marker header on the response.
package probe

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"presence/pkg/protocol"
)

// Result is the outcome of a probe.
type Result int

const (
	// Indeterminate means the request failed or returned non-2xx. The probe
	// may be retried.
	Indeterminate Result = iota
	// Compatible means the push transport is expected to work.
	Compatible
	// Incompatible means the push transport cannot work here.
	Incompatible
)

func (r Result) String() string {
	switch r {
	case Compatible:
		return "compatible"
	case Incompatible:
		return "incompatible"
	default:
		return "indeterminate"
	}
}

// Requester performs the edge request. *api.Client implements it.
type Requester interface {
	Edge(ctx context.Context) (http.Header, error)
}

// Prober runs the probe at most once to a definitive answer. Compatible and
// Incompatible are cached for the life of the Prober; Indeterminate is not.
// Concurrent callers share one in-flight request.
type Prober struct {
	req     Requester
	headers []string
	logger  *slog.Logger
	group   singleflight.Group

	mu      sync.Mutex
	settled bool
	result  Result
	err     error
}

// New returns a Prober that flags any of headers as an incompatible
// platform. With no headers, protocol.DefaultPlatformHeader is used.
func New(req Requester, headers []string, logger *slog.Logger) *Prober {
	if len(headers) == 0 {
		headers = []string{protocol.DefaultPlatformHeader}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{req: req, headers: headers, logger: logger.With("component", "probe")}
}

type outcome struct {
	result Result
	err    error
}

// Probe returns the cached result when settled, otherwise performs (or joins)
// the request. For Incompatible the error is a
// *protocol.EnvironmentIncompatibleError naming the header found; for
// Indeterminate it is the request failure; for Compatible it is nil.
func (p *Prober) Probe(ctx context.Context) (Result, error) {
	if o, ok := p.cached(); ok {
		return o.result, o.err
	}

	ch := p.group.DoChan("probe", func() (any, error) {
		if o, ok := p.cached(); ok {
			return o, nil
		}
		r, err := p.run(context.WithoutCancel(ctx))
		if r != Indeterminate {
			p.mu.Lock()
			p.settled, p.result, p.err = true, r, err
			p.mu.Unlock()
		}
		return outcome{r, err}, nil
	})

	select {
	case res := <-ch:
		o, _ := res.Val.(outcome)
		return o.result, o.err
	case <-ctx.Done():
		return Indeterminate, ctx.Err()
	}
}

// Settled returns the cached definitive result, if any.
func (p *Prober) Settled() (Result, bool) {
	o, ok := p.cached()
	return o.result, ok
}

func (p *Prober) cached() (outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return outcome{p.result, p.err}, p.settled
}

func (p *Prober) run(ctx context.Context) (Result, error) {
	h, err := p.req.Edge(ctx)
	if err != nil {
		p.logger.Warn("probe indeterminate", "err", err)
		return Indeterminate, err
	}
	for _, name := range p.headers {
		if v := h.Get(name); v != "" {
			p.logger.Info("probe: incompatible edge platform", "header", name, "value", v)
			return Incompatible, &protocol.EnvironmentIncompatibleError{Header: name, Value: v}
		}
	}
	p.logger.Info("probe: compatible")
	return Compatible, nil
}
