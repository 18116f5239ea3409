// Package sqlite implements a durable db.Backend on top of SQLite (modernc.org/sqlite, no cgo).
//
// Layout:
//
//   - Every database is a single file <Dir>/<escaped name>.sqlite opened in WAL mode,
//     so read-only transactions of one database can run side by side.
//   - All records live in one table keyed by (collection, key). Keys are stored as blobs,
//     which sqlite compares with memcmp, so cursor walks visit them in byte-wise order.
//   - The collection names and the schema version live in two small bookkeeping tables.
//
// Options.MaxPageCount caps the file size through the max_page_count pragma. Writes
// beyond the cap fail with SQLITE_FULL, which the backend reports as db.ErrQuotaExceeded.
package sqlite
