package db

import (
	"errors"
	"fmt"
	"sync"
)

// notifier implements Request. It records the latest outcome so handlers that are
// registered late (e.g. from another goroutine) still observe it.
type notifier[T any] struct {
	mu      sync.Mutex
	success []func(T)
	failure []func(error)
	settled bool
	ok      bool
	result  T
	err     error
}

func (n *notifier[T]) OnSuccess(fn func(result T)) {
	n.mu.Lock()
	n.success = append(n.success, fn)
	replay, result := n.settled && n.ok, n.result
	n.mu.Unlock()

	if replay {
		if err := protect(func() { fn(result) }); err != nil {
			Logger.Errorf("late success handler: %v", err)
		}
	}
}

func (n *notifier[T]) OnError(fn func(err error)) {
	n.mu.Lock()
	n.failure = append(n.failure, fn)
	replay, err := n.settled && !n.ok, n.err
	n.mu.Unlock()

	if replay {
		if perr := protect(func() { fn(err) }); perr != nil {
			Logger.Errorf("late error handler: %v", perr)
		}
	}
}

// succeed records the result and notifies the success handlers.
// A panicking handler does not stop the others, the first panic is returned.
func (n *notifier[T]) succeed(result T) error {
	n.mu.Lock()
	n.settled, n.ok, n.result, n.err = true, true, result, nil
	handlers := append([]func(T){}, n.success...)
	n.mu.Unlock()

	var first error
	for _, fn := range handlers {
		if err := protect(func() { fn(result) }); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// fail records the error and notifies the error handlers.
func (n *notifier[T]) fail(err error) error {
	n.mu.Lock()
	n.settled, n.ok, n.err = true, false, err
	handlers := append([]func(error){}, n.failure...)
	n.mu.Unlock()

	var first error
	for _, fn := range handlers {
		if perr := protect(func() { fn(err) }); perr != nil && first == nil {
			first = perr
		}
	}
	return first
}

// protect runs fn and turns a panic into an ErrCallbackPanic.
func protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", ErrCallbackPanic, rerr)
			} else {
				err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
			}
		}
	}()
	fn()
	return nil
}

// abortCause wraps err so that it matches ErrAborted as well as the original cause.
func abortCause(err error) error {
	if errors.Is(err, ErrAborted) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrAborted, err)
}
