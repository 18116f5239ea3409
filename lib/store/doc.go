// Package store provides a small asynchronous key-value store on top of the
// notification based engine of package db. Every operation returns a Future that
// settles exactly once; callers await it with a context or chain further work.
//
// The package focuses on:
//   - Lazy, memoized connections: the database is opened and the collection created on first use
//   - One transaction per operation with commit/abort mapped onto the future
//   - A typed facade (Store[V]) that encodes values with a codec
//   - Unified error handling through the Error type and its return codes
//
// Key Components:
//
//   - Accessor: Names a collection of a database. The first use runs the open sequence:
//     open the current version, and if the collection is missing reopen at version+1 and
//     create it in the upgrade. Concurrent first users share this sequence. If another
//     accessor wins the race for the version bump, the sequence starts over (rounds in which the
//     version does not move forward are bounded by MaxProvisionAttempts).
//
//   - Run: Runs a work function on the object store inside a fresh transaction. The
//     operations Set, Get, Delete, Each, Values, Keys and Entries are built on it.
//
//   - Registry: Owns an engine and memoizes one accessor per (database, collection).
//     Registry.Default returns the accessor of the "files" collection in the
//     "files-store" database.
//
//   - Error System: Failures are reported as *Error with a return code:
//     RetCConnectionError (the database could not be opened or provisioned),
//     RetCTransactionError (the transaction aborted; IsRetryable reports true),
//     RetCEncodingError (a codec failed) and RetCInvalidOperation (e.g. an empty key).
//     errors.Is also matches the db sentinel errors in the chain (db.ErrQuotaExceeded, ...).
//
// Metrics:
//
//	Every operation increments tkv_store_ops_total{op,result} and observes
//	tkv_store_op_duration_seconds{op} (VictoriaMetrics). WriteMetrics dumps them.
//
// Usage:
//
//	registry := store.NewRegistry(maple.NewEngine(nil))
//	defer registry.Close()
//
//	_, err := store.Set(registry.Default(), "song.mp3", data).Await(ctx)
//	values, err := store.Values(registry.Default()).Await(ctx)
//
//	files := store.NewStore[library.FileHandle](registry.Default(), codec.NewJSONCodec())
//	handle, found, err := files.Get(ctx, "song.mp3")
//
// Callbacks of the engine run on its event loop: never await a future from inside a
// visitor of Each or a work function of Run.
package store
