package router

import (
	"sync"
)

// ElasticQueue is a thread-safe FIFO queue that doubles its capacity when it
// fills instead of blocking or dropping. Analysis bursts arrive faster than
// the archive writers drain them; the queue absorbs the spike.
type ElasticQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	depth  int
	closed bool

	// Stats
	enqueued int64
	dequeued int64
	grows    int
}

// NewElasticQueue creates a queue with the given initial capacity.
func NewElasticQueue[T any](initialCapacity int) *ElasticQueue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &ElasticQueue[T]{
		items: make([]T, initialCapacity),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item, growing the queue if it is full.
// Returns false if the queue is closed.
func (q *ElasticQueue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.depth == len(q.items) {
		q.grow()
	}

	q.items[(q.head+q.depth)%len(q.items)] = item
	q.depth++
	q.enqueued++

	q.cond.Signal()
	return true
}

// Pop removes and returns the oldest item, blocking until one is available.
// Returns false once the queue is closed and drained.
func (q *ElasticQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.depth == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.depth == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// TryPop removes the oldest item without blocking.
func (q *ElasticQueue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.depth == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// Drain removes up to max items at once (all items when max <= 0).
func (q *ElasticQueue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.depth
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	for i := range out {
		out[i] = q.popLocked()
	}
	return out
}

// Close marks the queue closed. Pushes are rejected; consumers drain the
// remaining items and then see the closed signal.
func (q *ElasticQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *ElasticQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// Cap returns the current capacity.
func (q *ElasticQueue[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns queue statistics.
func (q *ElasticQueue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Depth:    q.depth,
		Capacity: len(q.items),
		Enqueued: q.enqueued,
		Dequeued: q.dequeued,
		Grows:    q.grows,
	}
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Depth    int
	Capacity int
	Enqueued int64
	Dequeued int64
	Grows    int
}

// popLocked removes the head item. Must be called with the lock held and the
// queue non-empty.
func (q *ElasticQueue[T]) popLocked() T {
	item := q.items[q.head]
	var zero T
	q.items[q.head] = zero // Release the reference
	q.head = (q.head + 1) % len(q.items)
	q.depth--
	q.dequeued++
	return item
}

// grow doubles capacity, unwrapping the ring. Must be called with the lock
// held.
func (q *ElasticQueue[T]) grow() {
	bigger := make([]T, len(q.items)*2)

	n := copy(bigger, q.items[q.head:])
	copy(bigger[n:], q.items[:q.head])

	q.items = bigger
	q.head = 0
	q.grows++
}
