package testing

import (
	"testing"
	"time"

	"github.com/ValentinKolb/tKV/lib/db"
)

// WaitTimeout bounds every blocking helper of this package
var WaitTimeout = 10 * time.Second

// BackendFactory creates a fresh, empty backend for one test
type BackendFactory func(t testing.TB) db.Backend

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

type outcome[T any] struct {
	value T
	err   error
}

// Await blocks until a single-shot request succeeded or failed.
// Do not use it for cursor requests, they succeed once per record.
func Await[T any](t testing.TB, req db.Request[T]) (T, error) {
	t.Helper()

	ch := make(chan outcome[T], 1)
	req.OnSuccess(func(v T) {
		select {
		case ch <- outcome[T]{value: v}:
		default:
		}
	})
	req.OnError(func(err error) {
		select {
		case ch <- outcome[T]{err: err}:
		default:
		}
	})

	select {
	case o := <-ch:
		return o.value, o.err
	case <-time.After(WaitTimeout):
		t.Fatalf("request did not settle within %s", WaitTimeout)
		var zero T
		return zero, nil
	}
}

// OpenConn opens the named database at its current version and creates the
// given collections in a follow-up upgrade if they are missing.
func OpenConn(t testing.TB, engine db.Engine, name string, collections ...string) db.Conn {
	t.Helper()

	conn, err := Await(t, engine.Open(name, 0, nil))
	if err != nil {
		t.Fatalf("Failed to open %s: %v", name, err)
	}

	missing := false
	for _, c := range collections {
		if !conn.HasCollection(c) {
			missing = true
		}
	}
	if !missing {
		return conn
	}

	next := conn.Version() + 1
	_ = conn.Close()
	conn, err = Await(t, engine.Open(name, next, func(ev db.UpgradeEvent) error {
		for _, c := range collections {
			if ev.Schema.HasCollection(c) {
				continue
			}
			if err := ev.Schema.CreateCollection(c); err != nil {
				return err
			}
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("Failed to upgrade %s to version %d: %v", name, next, err)
	}
	return conn
}

// RunTx runs work in a new transaction and waits for its outcome.
// It returns nil after a commit and the abort error otherwise.
func RunTx(t testing.TB, conn db.Conn, collection string, mode db.Mode, work func(tx db.Tx)) error {
	t.Helper()

	tx, err := conn.Transaction(collection, mode, work)
	if err != nil {
		return err
	}
	return WaitTx(t, tx)
}

// WaitTx waits until tx committed (nil) or aborted (the abort error).
func WaitTx(t testing.TB, tx db.Tx) error {
	t.Helper()

	done := make(chan error, 1)
	tx.OnComplete(func() { done <- nil })
	tx.OnAbort(func(err error) { done <- err })

	select {
	case err := <-done:
		return err
	case <-time.After(WaitTimeout):
		t.Fatalf("transaction %s did not finish within %s", tx.ID(), WaitTimeout)
		return nil
	}
}

// Put stores every record of kv in one read-write transaction.
func Put(t testing.TB, conn db.Conn, collection string, kv map[string][]byte) error {
	t.Helper()
	return RunTx(t, conn, collection, db.ReadWrite, func(tx db.Tx) {
		s := tx.ObjectStore()
		for k, v := range kv {
			s.Put(k, v)
		}
	})
}

// Get looks up a single key in a read-only transaction.
func Get(t testing.TB, conn db.Conn, collection, key string) (db.Lookup, error) {
	t.Helper()

	var result db.Lookup
	var reqErr error
	err := RunTx(t, conn, collection, db.ReadOnly, func(tx db.Tx) {
		req := tx.ObjectStore().Get(key)
		req.OnSuccess(func(l db.Lookup) { result = l })
		req.OnError(func(err error) { reqErr = err })
	})
	if reqErr != nil {
		return result, reqErr
	}
	return result, err
}

// Record is a key/value pair as seen by a cursor
type Record struct {
	Key   string
	Value []byte
}

// Scan walks the collection with a cursor and returns all records in visiting order.
func Scan(t testing.TB, conn db.Conn, collection string) ([]Record, error) {
	t.Helper()

	var records []Record
	err := RunTx(t, conn, collection, db.ReadOnly, func(tx db.Tx) {
		req := tx.ObjectStore().OpenCursor()
		req.OnSuccess(func(c db.Cursor) {
			if c == nil {
				return
			}
			records = append(records, Record{Key: c.Key(), Value: c.Value()})
			if err := c.Continue(); err != nil {
				tx.Abort()
			}
		})
	})
	return records, err
}
