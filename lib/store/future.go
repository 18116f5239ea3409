package store

import (
	"context"
	"sync"
)

// Future is the eventual outcome of a store operation. It settles exactly once,
// either with a value or with an error; later attempts to settle it are ignored.
//
// Await blocks the calling goroutine. Never call it from a callback that runs on
// the engine loop (an engine request handler or a visitor of Each): the loop would
// wait for itself.
type Future[T any] struct {
	mu        sync.Mutex
	settled   bool
	done      chan struct{} // closed after the callbacks ran
	value     T
	err       error
	callbacks []func(T, error)
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolved returns a future that already settled with v
func resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.resolve(v)
	return f
}

// rejected returns a future that already settled with err
func rejected[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.reject(err)
	return f
}

// Done returns a channel that is closed once the future settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await waits until the future settled or ctx is done. The context only bounds the
// wait: the operation behind the future keeps running and still commits or aborts.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek returns the outcome without blocking. ok is false while the future is pending.
func (f *Future[T]) Peek() (value T, ok bool, err error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		var zero T
		return zero, false, nil
	}
}

func (f *Future[T]) resolve(v T) bool {
	return f.settle(v, nil)
}

func (f *Future[T]) reject(err error) bool {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(v, err)
	}
	close(f.done)
	return true
}

// whenDone runs fn once the future settled, right away if it already did.
// fn runs on whichever goroutine settles the future (usually the engine loop)
// and must not block.
func (f *Future[T]) whenDone(fn func(T, error)) {
	f.mu.Lock()
	if f.settled {
		v, err := f.value, f.err
		f.mu.Unlock()
		fn(v, err)
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// then chains fn to f. The returned future settles with the outcome of the future
// returned by fn, or with the error of f.
func then[A, B any](f *Future[A], fn func(A) *Future[B]) *Future[B] {
	out := newFuture[B]()
	f.whenDone(func(a A, err error) {
		if err != nil {
			out.reject(err)
			return
		}
		fn(a).whenDone(func(b B, err error) {
			out.settle(b, err)
		})
	})
	return out
}
