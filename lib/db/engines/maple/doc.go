// Package maple implements an in-memory db.Backend. It is the fastest backend and
// the default for tests and the perf command; nothing survives the process.
//
// Key Components:
//
//   - backendImpl: Keeps every database in a concurrent map (xsync.MapOf) keyed by name.
//     Opening a database that does not exist yet creates it at version 0.
//
//   - databaseImpl: Holds the committed state of one database: its version, its
//     collections and the summed size of all keys and values.
//
//   - collection: The committed records of one collection. A sorted key snapshot is
//     built lazily for cursor walks and dropped by every commit that touches the collection.
//
//   - txImpl: A transaction buffers all writes and schema changes in per-collection
//     overlays. Reads merge the overlay with the committed state, so a transaction sees
//     its own writes while other transactions never see uncommitted data. Rollback
//     just drops the overlays; Commit applies them in one step.
//
// Quota:
//
//   - Options.MaxSizeBytes limits the summed key and value sizes per database. A commit
//     that would grow the database beyond the limit fails with db.ErrQuotaExceeded and
//     leaves the committed state untouched. This mirrors the storage quota browsers apply
//     to origin storage and lets tests exercise quota failures deterministically.
//
// The backend relies on db.NewEngine to serialize access: all methods are called from
// the engine loop only.
package maple
