package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/tKV/lib/codec"
	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/maple"
	dbtesting "github.com/ValentinKolb/tKV/lib/db/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newRegistry(t *testing.T, backend db.Backend) *Registry {
	if backend == nil {
		backend = maple.NewBackend(nil)
	}
	r := NewRegistry(db.NewEngine(backend))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// countingEngine counts the Open calls that reach the engine
type countingEngine struct {
	db.Engine
	opens atomic.Int32
}

func (e *countingEngine) Open(name string, version uint64, upgrade db.UpgradeFunc) db.Request[db.Conn] {
	e.opens.Add(1)
	return e.Engine.Open(name, version, upgrade)
}

type song struct {
	Title  string
	Artist string
	Length time.Duration
	Tags   []string
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func TestRoundTrip(t *testing.T) {
	ctx := testCtx(t)
	s := NewStore[song](newRegistry(t, nil).Default(), codec.NewJSONCodec())

	want := song{Title: "Blue", Artist: "Joni", Length: 3 * time.Minute, Tags: []string{"folk"}}
	require.NoError(t, s.Set(ctx, "blue.mp3", want))

	got, found, err := s.Get(ctx, "blue.mp3")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, nil).Default()

	for i := 0; i < 3; i++ {
		_, err := Set(a, "key", []byte("value")).Await(ctx)
		require.NoError(t, err)
	}
	_, err := Set(a, "key", []byte("latest")).Await(ctx)
	require.NoError(t, err)

	values, err := Values(a).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("latest")}, values)
}

func TestValuesAreComplete(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, nil).Default()

	want := map[string]bool{}
	for i := 0; i < 50; i++ {
		v := fmt.Sprintf("value-%02d", i)
		want[v] = true
		_, err := Set(a, fmt.Sprintf("key-%02d", i), []byte(v)).Await(ctx)
		require.NoError(t, err)
	}

	values, err := Values(a).Await(ctx)
	require.NoError(t, err)
	require.Len(t, values, len(want))
	for _, v := range values {
		assert.True(t, want[string(v)], "unexpected value %s", v)
	}

	keys, err := Keys(a).Await(ctx)
	require.NoError(t, err)
	assert.True(t, sortedStrings(keys), "keys not in order: %v", keys)
}

func TestEmptyStore(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, nil).Default()

	values, err := Values(a).Await(ctx)
	require.NoError(t, err)
	assert.NotNil(t, values)
	assert.Empty(t, values)

	typed, err := NewStore[song](a, codec.NewJSONCodec()).Values(ctx)
	require.NoError(t, err)
	assert.Empty(t, typed)
}

func TestMissingKey(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, nil).Default()

	l, err := Get(a, "nope").Await(ctx)
	require.NoError(t, err)
	assert.False(t, l.Found)

	_, found, err := NewStore[song](a, codec.NewJSONCodec()).Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, nil).Default()

	_, err := Set(a, "key", []byte("value")).Await(ctx)
	require.NoError(t, err)
	_, err = Delete(a, "key").Await(ctx)
	require.NoError(t, err)
	_, err = Delete(a, "key").Await(ctx)
	require.NoError(t, err, "deleting a missing key is not an error")

	l, err := Get(a, "key").Await(ctx)
	require.NoError(t, err)
	assert.False(t, l.Found)
}

func TestEmptyKey(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, nil).Default()

	_, err := Set(a, "", []byte("value")).Await(ctx)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.ErrorIs(t, err, db.ErrInvalidKey)
	assert.False(t, IsRetryable(err))
}

func TestConcurrentInitialization(t *testing.T) {
	ctx := testCtx(t)

	// opens of a single, sequential first use
	baseline := &countingEngine{Engine: db.NewEngine(maple.NewBackend(nil))}
	defer baseline.Close()
	_, err := Get(Open(baseline, DefaultDatabase, DefaultCollection), "key").Await(ctx)
	require.NoError(t, err)
	require.Positive(t, baseline.opens.Load())

	engine := &countingEngine{Engine: db.NewEngine(maple.NewBackend(nil))}
	r := NewRegistry(engine)
	defer r.Close()

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		i := i
		g.Go(func() error {
			_, err := Set(r.Default(), fmt.Sprintf("key-%d", i), []byte("value")).Await(ctx)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, baseline.opens.Load(), engine.opens.Load(), "concurrent first users must share one open sequence")

	values, err := Values(r.Default()).Await(ctx)
	require.NoError(t, err)
	assert.Len(t, values, 32)
}

func TestCollectionsShareDatabase(t *testing.T) {
	ctx := testCtx(t)
	r := newRegistry(t, nil)

	// both accessors race for the same version bump
	var g errgroup.Group
	for _, collection := range []string{"files", "playlists", "settings"} {
		collection := collection
		g.Go(func() error {
			_, err := Set(r.Accessor("shared", collection), "key", []byte(collection)).Await(ctx)
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, collection := range []string{"files", "playlists", "settings"} {
		l, err := Get(r.Accessor("shared", collection), "key").Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, collection, string(l.Value))
	}
}

func TestManyCollectionsShareDatabase(t *testing.T) {
	ctx := testCtx(t)
	r := newRegistry(t, nil)

	// more racing accessors than MaxProvisionAttempts, each round has one winner
	collections := make([]string, 2*MaxProvisionAttempts)
	for i := range collections {
		collections[i] = fmt.Sprintf("collection-%02d", i)
	}

	accessors := make([]*Accessor, len(collections))
	for i, collection := range collections {
		accessors[i] = r.Accessor("crowded", collection)
	}
	var g errgroup.Group
	for i := range accessors {
		i := i
		g.Go(func() error {
			_, err := accessors[i].Conn().Await(ctx)
			return err
		})
	}
	require.NoError(t, g.Wait())

	for i, a := range accessors {
		_, err := Set(a, "key", []byte(collections[i])).Await(ctx)
		require.NoError(t, err)
	}
	for i, a := range accessors {
		l, err := Get(a, "key").Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, collections[i], string(l.Value))
	}
}

// stallingEngine ignores version bumps: it reopens the stored version and never upgrades
type stallingEngine struct {
	db.Engine
}

func (e *stallingEngine) Open(name string, _ uint64, _ db.UpgradeFunc) db.Request[db.Conn] {
	return e.Engine.Open(name, 0, nil)
}

func TestProvisioningGivesUp(t *testing.T) {
	ctx := testCtx(t)
	engine := &countingEngine{Engine: &stallingEngine{Engine: db.NewEngine(maple.NewBackend(nil))}}
	t.Cleanup(func() { _ = engine.Close() })

	_, err := Open(engine, "stuck", "files").Conn().Await(ctx)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, db.ErrNotFound)
	// one open to look and one to provision per round
	assert.LessOrEqual(t, int(engine.opens.Load()), 2*(MaxProvisionAttempts+1))
}

// gatedEngine holds back the success of every open until gate is closed
type gatedEngine struct {
	db.Engine
	gate chan struct{}
}

type gatedRequest struct {
	db.Request[db.Conn]
	gate chan struct{}
}

func (r gatedRequest) OnSuccess(fn func(db.Conn)) {
	r.Request.OnSuccess(func(c db.Conn) {
		<-r.gate
		fn(c)
	})
}

func (e *gatedEngine) Open(name string, version uint64, upgrade db.UpgradeFunc) db.Request[db.Conn] {
	return gatedRequest{Request: e.Engine.Open(name, version, upgrade), gate: e.gate}
}

func TestCloseWhileOpening(t *testing.T) {
	ctx := testCtx(t)
	engine := &gatedEngine{Engine: db.NewEngine(maple.NewBackend(nil)), gate: make(chan struct{})}
	t.Cleanup(func() { _ = engine.Close() })

	a := Open(engine, DefaultDatabase, DefaultCollection)
	pending := a.Conn()
	require.NoError(t, a.Close())
	close(engine.gate)

	conn, err := pending.Await(ctx)
	require.NoError(t, err)
	_, err = conn.Transaction(DefaultCollection, db.ReadOnly, func(db.Tx) {})
	assert.ErrorIs(t, err, db.ErrClosed, "the connection must be closed once it arrives")
}

func TestFailureIsolation(t *testing.T) {
	ctx := testCtx(t)
	backend := dbtesting.NewFaultyBackend(maple.NewBackend(nil), 2)
	a := newRegistry(t, backend).Default()

	for i := 0; i < 5; i++ {
		_, err := Set(a, fmt.Sprintf("key-%d", i), []byte("value")).Await(ctx)
		require.NoError(t, err)
	}

	values, err := Values(a).Await(ctx)
	require.Error(t, err)
	assert.Nil(t, values, "no partial result on failure")
	assert.ErrorIs(t, err, ErrTransaction)
	assert.ErrorIs(t, err, dbtesting.ErrInjected)
	assert.True(t, IsRetryable(err))

	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, RetCTransactionError, storeErr.Code)
}

func TestCommitFailure(t *testing.T) {
	ctx := testCtx(t)
	backend := dbtesting.NewFaultyBackend(maple.NewBackend(nil), -1)
	a := newRegistry(t, backend).Default()

	// provision the collection first
	_, err := Get(a, "key").Await(ctx)
	require.NoError(t, err)

	backend.FailCommit.Store(true)
	_, err = Set(a, "key", []byte("value")).Await(ctx)
	assert.ErrorIs(t, err, ErrTransaction)
	assert.ErrorIs(t, err, db.ErrAborted)

	backend.FailCommit.Store(false)
	l, err := Get(a, "key").Await(ctx)
	require.NoError(t, err)
	assert.False(t, l.Found)
}

func TestQuotaExceeded(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, maple.NewBackend(&maple.Options{MaxSizeBytes: 128})).Default()

	_, err := Set(a, "small", []byte("value")).Await(ctx)
	require.NoError(t, err)

	_, err = Set(a, "large", []byte(strings.Repeat("x", 256))).Await(ctx)
	assert.ErrorIs(t, err, ErrTransaction)
	assert.ErrorIs(t, err, db.ErrQuotaExceeded)
}

func TestConnectionError(t *testing.T) {
	ctx := testCtx(t)
	engine := db.NewEngine(maple.NewBackend(nil))
	require.NoError(t, engine.Close())

	a := Open(engine, DefaultDatabase, DefaultCollection)
	_, err := Set(a, "key", []byte("value")).Await(ctx)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, db.ErrClosed)
	assert.False(t, IsRetryable(err))

	// the failure is memoized
	_, err = Get(a, "key").Await(ctx)
	assert.ErrorIs(t, err, ErrConnection)

	_, err = Set(Open(engine, "", DefaultCollection), "key", nil).Await(ctx)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestEachStopsEarly(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, nil).Default()

	for i := 0; i < 5; i++ {
		_, err := Set(a, fmt.Sprintf("key-%d", i), []byte("value")).Await(ctx)
		require.NoError(t, err)
	}

	var seen []string
	_, err := Each(a, func(key string, _ []byte) error {
		seen = append(seen, key)
		if len(seen) == 2 {
			return ErrStop
		}
		return nil
	}).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-0", "key-1"}, seen)
}

func TestEachVisitorError(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, nil).Default()

	_, err := Set(a, "key", []byte("value")).Await(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = Each(a, func(string, []byte) error { return boom }).Await(ctx)
	assert.ErrorIs(t, err, boom)

	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, RetCInternalError, storeErr.Code)
	assert.False(t, IsRetryable(err))
}

func TestTypedDecodeError(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, nil).Default()

	_, err := Set(a, "broken", []byte("{not json")).Await(ctx)
	require.NoError(t, err)

	s := NewStore[song](a, codec.NewJSONCodec())
	_, _, err = s.Get(ctx, "broken")
	assert.ErrorIs(t, err, ErrEncoding)

	_, err = s.Values(ctx)
	assert.ErrorIs(t, err, ErrEncoding)

	raw := NewStore[[]byte](a, codec.NewRawCodec())
	v, found, err := raw.Get(ctx, "broken")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "{not json", string(v))

	err = NewStore[int](a, codec.NewRawCodec()).Set(ctx, "int", 42)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestRegistryMemoizes(t *testing.T) {
	r := newRegistry(t, nil)

	assert.Same(t, r.Default(), r.Default())
	assert.Same(t, r.Accessor("a", "b"), r.Accessor("a", "b"))
	assert.NotSame(t, r.Accessor("a", "b"), r.Accessor("a", "c"))
	assert.Equal(t, Config{Database: "files-store", Collection: "files"}, r.Default().Config())
}

func TestAwaitHonoursContext(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// the future itself is unaffected
	f.resolve(7)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestMetricsAreRecorded(t *testing.T) {
	ctx := testCtx(t)
	a := newRegistry(t, nil).Default()

	before := OpCount("delete", "ok")
	_, err := Delete(a, "key").Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, OpCount("delete", "ok"))

	var sb strings.Builder
	WriteMetrics(&sb)
	assert.Contains(t, sb.String(), `tkv_store_ops_total{op="delete",result="ok"}`)
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}
