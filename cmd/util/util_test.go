package util

import (
	"context"
	"strings"
	"testing"

	"github.com/ValentinKolb/tKV/lib/common"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	v, err := Retry(ctx, 3, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, store.NewError(store.RetCTransactionError, "conflict")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)

	// not retryable
	calls = 0
	_, err = Retry(ctx, 3, func() (int, error) {
		calls++
		return 0, store.NewError(store.RetCConnectionError, "no database")
	})
	assert.ErrorIs(t, err, store.ErrConnection)
	assert.Equal(t, 1, calls)

	// gives up
	calls = 0
	_, err = Retry(ctx, 1, func() (int, error) {
		calls++
		return 0, store.NewError(store.RetCTransactionError, "conflict")
	})
	assert.True(t, store.IsRetryable(err))
	assert.Equal(t, 2, calls)
}

func TestGetEngine(t *testing.T) {
	for _, e := range common.EngineTypes {
		engine, err := GetEngine(&common.Config{Engine: e, DataDir: t.TempDir()})
		require.NoError(t, err, e)
		require.NoError(t, engine.Close(), e)
	}

	_, err := GetEngine(&common.Config{Engine: "redis"})
	assert.Error(t, err)
}
