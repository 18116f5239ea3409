// This file implements a lock-free Multi-Producer Single-Consumer (MPSC) queue
// that feeds the event loop of the storage engine.
//
// Features and Guarantees:
//
//   - Lock-Free writes: producers append with a single CAS on the tail node
//   - Unbounded Size: the queue grows as needed, limited only by available memory
//   - Per-Producer FIFO: items pushed by the same goroutine are popped in push order.
//     Items of concurrent producers are ordered by whichever CAS succeeds first.
//   - Blocking Pop: the single consumer parks on a wake-up token instead of spinning
package util

import (
	"runtime"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Queue is a lock-free multi-producer single-consumer queue
type Queue[T any] struct {
	head   atomic.Pointer[node[T]] // only touched by the consumer
	tail   atomic.Pointer[node[T]]
	wake   chan struct{}
	closed atomic.Bool
	size   atomic.Int64
	// producers between the closed check and their append
	inflight atomic.Int64
}

// NewQueue creates an empty queue
func NewQueue[T any]() *Queue[T] {
	sentinel := &node[T]{}
	q := &Queue[T]{
		// a single buffered token is enough: the consumer re-checks the list after every wake-up
		wake: make(chan struct{}, 1),
	}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Push appends an item. Returns false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue[T]) Push(value T) bool {
	q.inflight.Add(1)
	defer q.inflight.Add(-1)
	if q.closed.Load() {
		return false
	}

	n := &node[T]{value: value}
	var spins uint8

	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// may fail if another producer already helped, the tail still moves forward
				q.tail.CompareAndSwap(tail, n)
				q.size.Add(1)
				q.signal()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tail, next)
		}

		if spins < 10 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// Pop removes the oldest item, blocking until one is available.
// Returns false once the queue is closed and drained.
//
// Thread-safety: Must only be called by the single consumer.
func (q *Queue[T]) Pop() (T, bool) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, true
		}
		if q.closed.Load() {
			// producers that passed the closed check still append, a true Push is never lost
			for q.inflight.Load() > 0 {
				runtime.Gosched()
			}
			if v, ok := q.TryPop(); ok {
				return v, true
			}
			var zero T
			return zero, false
		}
		<-q.wake
	}
}

// TryPop removes the oldest item without blocking.
//
// Thread-safety: Must only be called by the single consumer.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return zero, false
	}
	q.head.Store(next)
	v := next.value
	next.value = zero // help the gc, next is the new sentinel
	q.size.Add(-1)
	return v, true
}

// Close rejects further pushes. Items already queued, and items of pushes that
// were already past the closed check, are still popped.
func (q *Queue[T]) Close() {
	q.closed.Store(true)
	q.signal()
}

// IsClosed returns true if the queue is closed.
func (q *Queue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the approximate number of queued items.
func (q *Queue[T]) Len() int {
	return int(q.size.Load())
}

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
