// Package db provides a transactional, notification based storage engine and the
// backend interface that concrete stores implement.
//
// The package focuses on:
//   - Named, versioned databases that contain named collections of key/value records
//   - Scoped transactions with a single commit/abort outcome
//   - Asynchronous requests that report their outcome through success and error handlers
//   - Pluggable synchronous backends (see engines/maple, engines/bolt and engines/sqlite)
//
// Key Components:
//
//   - Engine: Created by NewEngine on top of a Backend. It owns a single event loop
//     goroutine fed by a lock-free multi-producer single-consumer queue (util.Queue).
//     Every backend call and every handler runs on this loop, so backends need no
//     locking and handlers of one engine never run concurrently.
//
//   - Versioning: Engine.Open compares the requested version with the stored one.
//     A higher version runs the UpgradeFunc inside a version-change transaction which
//     is the only place where collections can be created or deleted. Version 0 opens
//     the current version and creates new databases at version 1.
//
//   - Scheduling: Transactions of one database are granted in FIFO order. Read-only
//     transactions may overlap, read-write and version-change transactions run alone.
//
//   - Transactions: The work function of a transaction and the handlers of its requests
//     issue further requests. Each request runs in its own loop task, so handlers
//     registered right after issuing a request are always in place. A transaction
//     commits automatically once no request is pending and no handler is running.
//     A failed request, a panicking handler or Abort roll it back.
//
//   - Cursors: OpenCursor returns a request that succeeds once per record (in byte-wise
//     key order) and a last time with a nil cursor. The walk only advances when the
//     success handler calls Cursor.Continue.
//
// Error Handling:
//
//   - All errors wrap one of the sentinel errors of this package (ErrAborted, ErrReadOnly,
//     ErrNotFound, ...) and can be inspected with errors.Is. Abort errors match ErrAborted
//     as well as their cause.
//
// Handlers must never block on other operations of the same engine, and Engine.Close
// must not be called from a handler: both would wait for the loop they are running on.
package db
