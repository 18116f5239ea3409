package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/tKV/lib/db"
)

// ErrStop can be returned by a visitor of Each to end the iteration early.
// Each then resolves normally.
var ErrStop = errors.New("stop iteration")

// Entry is a record as returned by Entries
type Entry struct {
	Key   string
	Value []byte
}

// --------------------------------------------------------------------------
// Transaction Runner
// --------------------------------------------------------------------------

// Run runs work inside a new transaction on the collection of the accessor.
//
// work runs on the engine loop. It issues requests on the object store and returns
// a future for its result; the future returned by Run settles with that result, or
// rejects with a TransactionError if the transaction aborts first. If the connection
// cannot be established Run rejects with a ConnectionError and work never runs.
//
// A result that does not depend on the commit (e.g. a read) may resolve before the
// transaction completes; writes should return a future of the transaction itself.
func Run[T any](a *Accessor, mode db.Mode, work func(s db.ObjectStore) *Future[T]) *Future[T] {
	return then(a.Conn(), func(conn db.Conn) *Future[T] {
		out := newFuture[T]()

		tx, err := conn.Transaction(a.cfg.Collection, mode, func(tx db.Tx) {
			work(tx.ObjectStore()).whenDone(func(v T, err error) {
				if err != nil {
					out.reject(txError(a, mode, err))
					return
				}
				out.resolve(v)
			})
		})
		if err != nil {
			return rejected[T](txError(a, mode, err))
		}

		tx.OnAbort(func(err error) {
			out.reject(txError(a, mode, err))
		})
		return out
	})
}

// txError wraps err as TransactionError unless it already is a store error.
func txError(a *Accessor, mode db.Mode, err error) error {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return err
	}
	return wrapError(RetCTransactionError, fmt.Sprintf("%s transaction on %s failed", mode, a.cfg), err)
}

// promisifyRequest turns a single-shot engine request into a future
func promisifyRequest[T any](req db.Request[T]) *Future[T] {
	f := newFuture[T]()
	req.OnSuccess(func(v T) { f.resolve(v) })
	req.OnError(func(err error) { f.reject(err) })
	return f
}

// promisifyTx returns a future that resolves when tx commits
func promisifyTx(tx db.Tx) *Future[struct{}] {
	f := newFuture[struct{}]()
	tx.OnComplete(func() { f.resolve(struct{}{}) })
	tx.OnAbort(func(err error) { f.reject(err) })
	return f
}

func validKey(key string) error {
	if key == "" {
		return wrapError(RetCInvalidOperation, "empty key", db.ErrInvalidKey)
	}
	return nil
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Set inserts or replaces the value for key. The future resolves once the write committed.
func Set(a *Accessor, key string, value []byte) *Future[struct{}] {
	if err := validKey(key); err != nil {
		return track("set", rejected[struct{}](err))
	}
	return track("set", Run(a, db.ReadWrite, func(s db.ObjectStore) *Future[struct{}] {
		s.Put(key, value)
		return promisifyTx(s.Transaction())
	}))
}

// Get looks up the value for key. A missing key resolves with Found set to false.
func Get(a *Accessor, key string) *Future[db.Lookup] {
	if err := validKey(key); err != nil {
		return track("get", rejected[db.Lookup](err))
	}
	return track("get", Run(a, db.ReadOnly, func(s db.ObjectStore) *Future[db.Lookup] {
		return promisifyRequest(s.Get(key))
	}))
}

// Delete removes the record for key. Deleting a missing key is not an error.
func Delete(a *Accessor, key string) *Future[struct{}] {
	if err := validKey(key); err != nil {
		return track("delete", rejected[struct{}](err))
	}
	return track("delete", Run(a, db.ReadWrite, func(s db.ObjectStore) *Future[struct{}] {
		s.Delete(key)
		return promisifyTx(s.Transaction())
	}))
}

// Each walks all records in key order inside one read-only transaction and calls
// visitor for each of them. The visitor runs on the engine loop: it must not block
// and must not await other store operations.
//
// A visitor error aborts the walk and rejects the future with an InternalError
// wrapping it, except for ErrStop which ends the walk and resolves the future.
func Each(a *Accessor, visitor func(key string, value []byte) error) *Future[struct{}] {
	return track("each", Run(a, db.ReadOnly, func(s db.ObjectStore) *Future[struct{}] {
		tx := s.Transaction()
		out := newFuture[struct{}]()

		s.OpenCursor().OnSuccess(func(c db.Cursor) {
			if c == nil {
				return
			}
			if err := visitor(c.Key(), c.Value()); err != nil {
				if errors.Is(err, ErrStop) {
					return
				}
				out.reject(wrapError(RetCInternalError, fmt.Sprintf("visitor failed at key %q", c.Key()), err))
				tx.Abort()
				return
			}
			if err := c.Continue(); err != nil {
				out.reject(err)
				tx.Abort()
			}
		})
		// a failed cursor step aborts the transaction, Run rejects then
		tx.OnComplete(func() { out.resolve(struct{}{}) })
		return out
	}))
}

// Values returns the values of all records in key order. The slice is built
// completely inside one transaction; on failure no partial result is returned.
func Values(a *Accessor) *Future[[][]byte] {
	values := [][]byte{}
	return then(Each(a, func(_ string, value []byte) error {
		values = append(values, value)
		return nil
	}), func(struct{}) *Future[[][]byte] {
		return resolved(values)
	})
}

// Keys returns all keys in order.
func Keys(a *Accessor) *Future[[]string] {
	keys := []string{}
	return then(Each(a, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	}), func(struct{}) *Future[[]string] {
		return resolved(keys)
	})
}

// Entries returns all records in key order.
func Entries(a *Accessor) *Future[[]Entry] {
	entries := []Entry{}
	return then(Each(a, func(key string, value []byte) error {
		entries = append(entries, Entry{Key: key, Value: value})
		return nil
	}), func(struct{}) *Future[[]Entry] {
		return resolved(entries)
	})
}
