package statusync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueRunsNestedPostsAfterCurrent(t *testing.T) {
	t.Parallel()

	var q eventQueue
	var order []string
	q.post(func() {
		order = append(order, "a-start")
		q.post(func() { order = append(order, "b") })
		order = append(order, "a-end")
	})
	assert.Equal(t, []string{"a-start", "a-end", "b"}, order)
}

func TestQueueNeverRunsConcurrently(t *testing.T) {
	t.Parallel()

	var q eventQueue
	var (
		active int
		peak   int
		total  int
		mu     sync.Mutex
	)
	run := func() {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()

		mu.Lock()
		active--
		total++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				q.post(run)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, peak)
	assert.Equal(t, 32*50, total)
}
