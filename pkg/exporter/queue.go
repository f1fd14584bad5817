package exporter

import (
	"sync"
	"sync/atomic"
)

// queue is a bounded in-memory FIFO. When full, the oldest item is
// dropped to make room and a counter is incremented, so an unbounded
// producer against a failing hub cannot grow memory without limit.
type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	max     int
	dropped atomic.Uint64
}

func newQueue[T any](max int) *queue[T] {
	return &queue[T]{max: max}
}

// Push appends an item, dropping the oldest if the queue is full.
func (q *queue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.max {
		over := len(q.items) - q.max + 1
		q.items = q.items[over:]
		q.dropped.Add(uint64(over))
	}
	q.items = append(q.items, item)
}

// Swap atomically takes the queue contents, leaving it empty.
// Concurrent Push calls during a flush land on the fresh slice.
func (q *queue[T]) Swap() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Requeue puts undelivered items back at the front so retry order
// matches enqueue order. If the combined length exceeds the bound, the
// oldest requeued items are dropped.
func (q *queue[T]) Requeue(items []T) {
	if len(items) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	combined := make([]T, 0, len(items)+len(q.items))
	combined = append(combined, items...)
	combined = append(combined, q.items...)

	if len(combined) > q.max {
		over := len(combined) - q.max
		combined = combined[over:]
		q.dropped.Add(uint64(over))
	}
	q.items = combined
}

// Drop counts n items discarded outside the bound, such as items the
// hub permanently rejected.
func (q *queue[T]) Drop(n int) {
	q.dropped.Add(uint64(n))
}

// Len returns the number of pending items.
func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the total number of items dropped by the bound.
func (q *queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}
