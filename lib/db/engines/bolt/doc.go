// Package bolt implements a durable db.Backend on top of bbolt, an embedded B+ tree store.
//
// Layout:
//
//   - Every database is a single file <Dir>/<escaped name>.bolt. The file lock of bbolt
//     keeps a second process from opening the same database (Options.Timeout bounds the wait).
//   - Every collection is a top-level bucket. Keys are stored as raw bytes, so cursor
//     walks visit them in byte-wise order.
//   - The schema version lives in the reserved bucket __tkv_meta, which is never
//     reported as a collection and cannot be created or deleted through the schema.
//
// Transactions map one to one to bbolt transactions. bbolt deadlocks if a goroutine
// holds a read transaction while a write transaction of the same file needs to grow the
// memory map; the engine scheduler never lets read and write transactions of one
// database overlap, so this cannot happen here.
package bolt
