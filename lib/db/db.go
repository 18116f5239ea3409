package db

import (
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple  Implementation = "maple"
	ImplBolt   Implementation = "bolt"
	ImplSQLite Implementation = "sqlite"
)

// Mode is the access mode of a transaction
type Mode int

const (
	ReadOnly      Mode = iota // Only Get and OpenCursor requests are allowed
	ReadWrite                 // All requests are allowed
	VersionChange             // Schema changes during an upgrade (engine internal)
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "readonly"
	case ReadWrite:
		return "readwrite"
	case VersionChange:
		return "versionchange"
	default:
		return "unknown"
	}
}

// Lookup is the result of a Get request. Found is false if no record exists for the key.
type Lookup struct {
	Value []byte
	Found bool
}

// --------------------------------------------------------------------------
// Notification Interfaces
// --------------------------------------------------------------------------

// Request is the handle of an asynchronous engine operation.
// Exactly one of the registered success or error handlers is notified for every
// completion of the request. Cursor requests complete once per visited record.
//
// Handlers are invoked on the engine loop. Handlers registered after the request
// completed are invoked immediately with the latest outcome.
type Request[T any] interface {
	OnSuccess(fn func(result T))
	OnError(fn func(err error))
}

// UpgradeEvent is passed to the upgrade hook of Engine.Open when the stored
// version of a database is lower than the requested one.
type UpgradeEvent struct {
	OldVersion uint64
	NewVersion uint64
	Schema     Schema
}

// UpgradeFunc provisions the schema of a database. It runs exactly once per
// version bump inside a version-change transaction. Returning an error aborts
// the upgrade and fails the open request.
type UpgradeFunc func(ev UpgradeEvent) error

// Schema gives access to the collections of a database during an upgrade.
type Schema interface {
	// CreateCollection creates a new, empty collection. Fails with ErrConstraint if it already exists.
	CreateCollection(name string) error
	// DeleteCollection removes a collection and all of its records. Fails with ErrNotFound if it does not exist.
	DeleteCollection(name string) error
	// HasCollection reports whether the collection exists.
	HasCollection(name string) bool
	// Collections returns the names of all collections in key order.
	Collections() []string
}

// --------------------------------------------------------------------------
// Engine Interfaces
// --------------------------------------------------------------------------

// Engine is a transactional, notification based storage engine.
// All notifications of an engine are dispatched on a single event loop.
type Engine interface {
	// Open opens (or creates) the named database.
	// A version of 0 opens the current version, creating the database at version 1 if it does not exist.
	// If the requested version is higher than the stored one, upgrade runs before the request succeeds.
	// A lower version fails the request with ErrVersion.
	Open(name string, version uint64, upgrade UpgradeFunc) Request[Conn]

	// Implementation returns the backend identifier of the engine.
	Implementation() Implementation

	// Close stops the event loop once all running transactions are done and closes the backend.
	// Queued transactions and pending open requests fail with ErrClosed.
	Close() error
}

// Conn is an open connection to a database at a fixed version.
type Conn interface {
	Name() string
	Version() uint64

	// HasCollection reports whether the collection existed when the connection was opened.
	HasCollection(name string) bool
	// Collections returns the collection names known to this connection.
	Collections() []string

	// Transaction queues a new transaction on the collection and returns its handle.
	// work runs on the engine loop as soon as the scheduler grants the transaction.
	// Every request issued by work (or by one of the request handlers) runs inside the
	// same transaction; the transaction commits once no request is pending.
	// If the transaction never starts (engine closed, backend failure) only OnAbort is notified.
	Transaction(collection string, mode Mode, work func(tx Tx)) (Tx, error)

	// Close closes the connection. Running transactions are not affected.
	Close() error
}

// Tx is a scoped unit of work with a single commit/abort outcome.
type Tx interface {
	ID() uuid.UUID
	Mode() Mode
	ObjectStore() ObjectStore

	// OnComplete is notified after a successful commit.
	OnComplete(fn func())
	// OnError is notified when a request of the transaction failed. OnAbort follows.
	OnError(fn func(err error))
	// OnAbort is notified after the transaction was rolled back.
	OnAbort(fn func(err error))

	// Abort rolls back the transaction. Pending requests fail with ErrAborted.
	// It is safe to call from any goroutine; the rollback happens on the engine loop.
	Abort()
}

// ObjectStore is the collection handle of a transaction.
type ObjectStore interface {
	Name() string
	Transaction() Tx

	// Put inserts or replaces the record for key.
	Put(key string, value []byte) Request[struct{}]
	// Get looks up the record for key. A missing record is not an error.
	Get(key string) Request[Lookup]
	// Delete removes the record for key. Deleting a missing key is not an error.
	Delete(key string) Request[struct{}]
	// OpenCursor walks all records in key order. The request succeeds once per record
	// and a last time with a nil cursor.
	OpenCursor() Request[Cursor]
}

// Cursor points at one record of a cursor walk.
type Cursor interface {
	Key() string
	Value() []byte
	// Continue advances the cursor. It must be called from the success handler of the
	// cursor request, otherwise the transaction is no longer active.
	Continue() error
}

// --------------------------------------------------------------------------
// Backend Interfaces
// --------------------------------------------------------------------------

// Backend is a synchronous storage implementation.
// NewEngine wraps a backend into an Engine; the engine calls the backend from its
// event loop only, so backends need no synchronization of their own.
type Backend interface {
	Implementation() Implementation
	// OpenDatabase returns the named database, creating its storage if necessary.
	// A newly created database reports version 0.
	OpenDatabase(name string) (Database, error)
	Close() error
}

// Database is a single database of a backend.
type Database interface {
	Name() string
	Version() (uint64, error)
	Collections() ([]string, error)
	Begin(mode Mode) (RawTx, error)
	Close() error
}

// RawTx is a backend transaction.
// Schema operations are only called on VersionChange transactions.
type RawTx interface {
	// Get returns a copy of the stored value.
	Get(collection, key string) (value []byte, found bool, err error)
	Put(collection, key string, value []byte) error
	Delete(collection, key string) error
	// Next returns the first record with a key greater than after (greater or equal if inclusive).
	Next(collection, after string, inclusive bool) (key string, value []byte, ok bool, err error)

	Version() (uint64, error)
	Collections() ([]string, error)
	HasCollection(name string) (bool, error)
	CreateCollection(name string) error
	DeleteCollection(name string) error
	SetVersion(version uint64) error

	Commit() error
	Rollback() error
}
