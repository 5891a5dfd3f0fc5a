package statusync

import "sync"

// eventQueue serializes every state transition. post appends; whichever
// goroutine finds the queue idle drains it, running events in order until it
// is empty. Events posted while draining, including from inside an event,
// only enqueue, so no two events ever run concurrently and an event never
// re-enters another.
type eventQueue struct {
	mu       sync.Mutex
	pending  []func()
	draining bool
}

func (q *eventQueue) post(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true

	for len(q.pending) > 0 {
		next := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		next()

		q.mu.Lock()
	}
	q.draining = false
	q.mu.Unlock()
}
