package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureSettlesOnce(t *testing.T) {
	f := newFuture[string]()

	_, ok, _ := f.Peek()
	assert.False(t, ok)

	assert.True(t, f.resolve("first"))
	assert.False(t, f.resolve("second"))
	assert.False(t, f.reject(errors.New("late")))

	v, ok, err := f.Peek()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	select {
	case <-f.Done():
	default:
		t.Fatal("Done not closed after settling")
	}
}

func TestFutureCallbacks(t *testing.T) {
	f := newFuture[int]()

	var calls []int
	f.whenDone(func(v int, err error) { calls = append(calls, v) })
	f.resolve(1)
	// registered after settling, runs right away
	f.whenDone(func(v int, err error) { calls = append(calls, v*10) })

	assert.Equal(t, []int{1, 10}, calls)
}

func TestThen(t *testing.T) {
	ctx := context.Background()

	doubled := then(resolved(21), func(v int) *Future[int] { return resolved(v * 2) })
	v, err := doubled.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	called := false
	failed := then(rejected[int](boom), func(v int) *Future[string] {
		called = true
		return resolved("never")
	})
	_, err = failed.Await(ctx)
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)

	inner := newFuture[string]()
	pending := then(resolved(1), func(int) *Future[string] { return inner })
	_, ok, _ := pending.Peek()
	assert.False(t, ok)
	inner.reject(boom)
	_, err = pending.Await(ctx)
	assert.ErrorIs(t, err, boom)
}
