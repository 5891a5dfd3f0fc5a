package probe

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/pkg/protocol"
)

type fakeRequester struct {
	calls   atomic.Int32
	mu      sync.Mutex
	header  http.Header
	err     error
	release chan struct{} // when set, Edge blocks until closed
}

func (f *fakeRequester) set(h http.Header, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.header, f.err = h, err
}

func (f *fakeRequester) Edge(ctx context.Context) (http.Header, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.header, f.err
}

func TestProbeResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header http.Header
		err    error
		want   Result
	}{
		{name: "platform header", header: http.Header{"X-Vercel-Id": {"fra1::abc"}}, want: Incompatible},
		{name: "plain server", header: http.Header{"Server": {"nginx"}}, want: Compatible},
		{name: "request failed", err: errors.New("dial tcp: refused"), want: Indeterminate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := &fakeRequester{}
			req.set(tt.header, tt.err)
			p := New(req, nil, nil)

			got, err := p.Probe(context.Background())
			assert.Equal(t, tt.want, got)

			switch tt.want {
			case Incompatible:
				var eie *protocol.EnvironmentIncompatibleError
				require.True(t, errors.As(err, &eie))
				assert.Equal(t, "X-Vercel-Id", eie.Header)
				assert.Equal(t, "fra1::abc", eie.Value)
			case Compatible:
				assert.NoError(t, err)
			case Indeterminate:
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestProbeCachesDefinitiveResult(t *testing.T) {
	t.Parallel()

	req := &fakeRequester{}
	req.set(http.Header{"X-Vercel-Id": {"x"}}, nil)
	p := New(req, nil, nil)

	for i := 0; i < 3; i++ {
		got, _ := p.Probe(context.Background())
		assert.Equal(t, Incompatible, got)
	}
	assert.Equal(t, int32(1), req.calls.Load(), "definitive result must be cached")

	r, ok := p.Settled()
	assert.True(t, ok)
	assert.Equal(t, Incompatible, r)
}

func TestProbeRetriesIndeterminate(t *testing.T) {
	t.Parallel()

	req := &fakeRequester{}
	req.set(nil, errors.New("timeout"))
	p := New(req, nil, nil)

	got, _ := p.Probe(context.Background())
	require.Equal(t, Indeterminate, got)
	_, ok := p.Settled()
	require.False(t, ok)

	req.set(http.Header{}, nil)
	got, err := p.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Compatible, got)
	assert.Equal(t, int32(2), req.calls.Load())

	got, _ = p.Probe(context.Background())
	assert.Equal(t, Compatible, got)
	assert.Equal(t, int32(2), req.calls.Load())
}

func TestProbeCustomHeaders(t *testing.T) {
	t.Parallel()

	req := &fakeRequester{}
	req.set(http.Header{"X-Vercel-Id": {"x"}}, nil)
	p := New(req, []string{"Cf-Ray"}, nil)

	got, err := p.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Compatible, got, "only configured headers mark the platform")
}

func TestProbeConcurrentCallersShareRequest(t *testing.T) {
	t.Parallel()

	req := &fakeRequester{release: make(chan struct{})}
	req.set(http.Header{}, nil)
	p := New(req, nil, nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, _ := p.Probe(context.Background())
			results <- r
		}()
	}

	require.Eventually(t, func() bool { return req.calls.Load() == 1 }, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(req.release)
	wg.Wait()
	close(results)

	for r := range results {
		assert.Equal(t, Compatible, r)
	}
	assert.Equal(t, int32(1), req.calls.Load())
}

func TestProbeCallerContextCancelled(t *testing.T) {
	t.Parallel()

	req := &fakeRequester{release: make(chan struct{})}
	defer close(req.release)
	p := New(req, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := p.Probe(ctx)
	assert.Equal(t, Indeterminate, got)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "indeterminate", Indeterminate.String())
	assert.Equal(t, "compatible", Compatible.String())
	assert.Equal(t, "incompatible", Incompatible.String())
}
