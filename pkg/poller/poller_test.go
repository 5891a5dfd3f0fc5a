package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/clock"
	"presence/pkg/protocol"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type scriptedQuerier struct {
	mu      sync.Mutex
	calls   int
	results []queryResult
}

type queryResult struct {
	snap protocol.StatusSnapshot
	err  error
}

func (q *scriptedQuerier) Query(context.Context) (protocol.StatusSnapshot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if len(q.results) == 0 {
		return protocol.StatusSnapshot{Success: true}, nil
	}
	r := q.results[0]
	if len(q.results) > 1 {
		q.results = q.results[1:]
	}
	return r.snap, r.err
}

func (q *scriptedQuerier) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

type sinkLog struct {
	mu    sync.Mutex
	snaps []protocol.StatusSnapshot
	errs  []error
}

func (s *sinkLog) sink(snap protocol.StatusSnapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errs = append(s.errs, err)
		return
	}
	s.snaps = append(s.snaps, snap)
}

func withRefresh(d time.Duration) queryResult {
	return queryResult{snap: protocol.StatusSnapshot{Success: true, Refresh: d}}
}

func TestFirstTickIsImmediate(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(epoch)
	q := &scriptedQuerier{}
	log := &sinkLog{}
	p := New(Config{Querier: q, Sink: log.sink, Clock: clk})

	p.Start(context.Background())
	defer p.Stop()

	assert.Equal(t, 1, q.count(), "first query must run on Start")
	assert.Len(t, log.snaps, 1)
	assert.True(t, p.Running())
}

func TestIntervalFollowsRefreshThenDefault(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(epoch)
	q := &scriptedQuerier{results: []queryResult{
		withRefresh(2 * time.Second),
		withRefresh(0),
	}}
	p := New(Config{Querier: q, Clock: clk, DefaultInterval: 5 * time.Second})
	p.Start(context.Background())
	defer p.Stop()

	require.Equal(t, 1, q.count())
	assert.Equal(t, 2*time.Second, p.Interval())

	clk.Advance(1999 * time.Millisecond)
	assert.Equal(t, 1, q.count())
	clk.Advance(time.Millisecond)
	assert.Equal(t, 2, q.count())

	// No refresh hint: back to the default.
	assert.Equal(t, 5*time.Second, p.Interval())
	clk.Advance(4 * time.Second)
	assert.Equal(t, 2, q.count())
	clk.Advance(time.Second)
	assert.Equal(t, 3, q.count())
}

func TestFailureKeepsLastInterval(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(epoch)
	boom := errors.New("502 bad gateway")
	q := &scriptedQuerier{results: []queryResult{
		withRefresh(3 * time.Second),
		{err: boom},
		withRefresh(3 * time.Second),
	}}
	log := &sinkLog{}
	p := New(Config{Querier: q, Sink: log.sink, Clock: clk, DefaultInterval: 10 * time.Second})
	p.Start(context.Background())
	defer p.Stop()

	clk.Advance(3 * time.Second)
	require.Equal(t, 2, q.count())
	require.Len(t, log.errs, 1)

	var pe *protocol.PollError
	require.True(t, errors.As(log.errs[0], &pe))
	assert.ErrorIs(t, log.errs[0], boom)
	assert.Equal(t, 3*time.Second, p.Interval(), "failure must keep the last known interval")

	clk.Advance(3 * time.Second)
	assert.Equal(t, 3, q.count())
}

func TestInvisibleSkipsRequestButKeepsSchedule(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(epoch)
	var visible atomic.Bool
	q := &scriptedQuerier{}
	p := New(Config{Querier: q, Clock: clk, Visible: visible.Load, DefaultInterval: time.Second})
	p.Start(context.Background())
	defer p.Stop()

	assert.Equal(t, 0, q.count())
	clk.Advance(3 * time.Second)
	assert.Equal(t, 0, q.count())
	assert.Equal(t, 1, clk.Pending(), "schedule continues while hidden")

	visible.Store(true)
	clk.Advance(time.Second)
	assert.Equal(t, 1, q.count())
}

func TestStopCancelsPendingTick(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(epoch)
	q := &scriptedQuerier{}
	p := New(Config{Querier: q, Clock: clk, DefaultInterval: time.Second})
	p.Start(context.Background())
	require.Equal(t, 1, q.count())

	p.Stop()
	p.Stop()
	assert.False(t, p.Running())
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(time.Minute)
	assert.Equal(t, 1, q.count())
}

func TestStopFromSink(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(epoch)
	q := &scriptedQuerier{}
	var p *Poller
	p = New(Config{
		Querier:         q,
		Clock:           clk,
		DefaultInterval: time.Second,
		Sink:            func(protocol.StatusSnapshot, error) { p.Stop() },
	})
	p.Start(context.Background())

	clk.Advance(time.Minute)
	assert.Equal(t, 1, q.count())
	assert.Equal(t, 0, clk.Pending())
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(epoch)
	q := &scriptedQuerier{}
	p := New(Config{Querier: q, Clock: clk, DefaultInterval: time.Second})
	p.Start(context.Background())
	p.Start(context.Background())
	defer p.Stop()

	assert.Equal(t, 1, q.count())
	assert.Equal(t, 1, clk.Pending())
}
