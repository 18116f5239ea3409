package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ValentinKolb/tKV/lib/db"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tkv_meta (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tkv_collections (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS tkv_records (
	collection TEXT NOT NULL,
	key        BLOB NOT NULL,
	value      BLOB NOT NULL,
	PRIMARY KEY (collection, key)
) WITHOUT ROWID;
`

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the sqlite backend
type Options struct {
	// Dir is the directory that holds one file per database
	Dir string
	// BusyTimeout bounds the wait for a lock held by another process
	BusyTimeout time.Duration
	// MaxPageCount limits the number of pages per database file (0 = unlimited).
	// Writes beyond the limit fail with db.ErrQuotaExceeded.
	MaxPageCount int
}

// DefaultOptions returns the default sqlite options
func DefaultOptions() *Options {
	return &Options{
		Dir:         "./data",
		BusyTimeout: 5 * time.Second,
	}
}

// --------------------------------------------------------------------------
// Backend
// --------------------------------------------------------------------------

type backendImpl struct {
	opts Options
}

// NewBackend creates a new sqlite backend with the specified options (optional)
func NewBackend(opts *Options) (db.Backend, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &backendImpl{opts: *opts}, nil
}

// NewEngine creates an engine on top of a new sqlite backend
func NewEngine(opts *Options) (db.Engine, error) {
	backend, err := NewBackend(opts)
	if err != nil {
		return nil, err
	}
	return db.NewEngine(backend), nil
}

func (b *backendImpl) Implementation() db.Implementation {
	return db.ImplSQLite
}

// dsn builds the connection string. Names are escaped so they can never leave Dir.
// No file: prefix, sqlite would decode the escaped name again.
func (b *backendImpl) dsn(name string) string {
	path := filepath.Join(b.opts.Dir, url.PathEscape(name)+".sqlite")

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", b.opts.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	if b.opts.MaxPageCount > 0 {
		q.Add("_pragma", fmt.Sprintf("max_page_count(%d)", b.opts.MaxPageCount))
	}
	return path + "?" + q.Encode()
}

func (b *backendImpl) OpenDatabase(name string) (db.Database, error) {
	raw, err := sql.Open("sqlite", b.dsn(name))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := raw.Ping(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := raw.Exec(schemaSQL); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("create schema: %w", mapErr(err))
	}
	return &databaseImpl{name: name, raw: raw}, nil
}

func (b *backendImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

type databaseImpl struct {
	name string
	raw  *sql.DB
}

// queryer is implemented by *sql.DB and *sql.Tx
type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (d *databaseImpl) Name() string {
	return d.name
}

func (d *databaseImpl) Version() (uint64, error) {
	return readVersion(d.raw)
}

func (d *databaseImpl) Collections() ([]string, error) {
	return listCollections(d.raw)
}

// Begin starts a deferred transaction. Read-only access is enforced by the engine;
// the driver does not support read-only transactions.
func (d *databaseImpl) Begin(mode db.Mode) (db.RawTx, error) {
	tx, err := d.raw.Begin()
	if err != nil {
		return nil, mapErr(err)
	}

	names, err := listCollections(tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	collections := make(map[string]struct{}, len(names))
	for _, n := range names {
		collections[n] = struct{}{}
	}

	return &txImpl{tx: tx, mode: mode, collections: collections}, nil
}

func (d *databaseImpl) Close() error {
	return d.raw.Close()
}

// --------------------------------------------------------------------------
// Transaction
// --------------------------------------------------------------------------

type txImpl struct {
	tx          *sql.Tx
	mode        db.Mode
	collections map[string]struct{} // kept in sync with schema changes of this transaction
}

func (t *txImpl) check(collection string) error {
	if _, ok := t.collections[collection]; !ok {
		return fmt.Errorf("%w: %s", db.ErrNotFound, collection)
	}
	return nil
}

func (t *txImpl) Get(collection, key string) ([]byte, bool, error) {
	if err := t.check(collection); err != nil {
		return nil, false, err
	}

	var value []byte
	err := t.tx.QueryRow(
		`SELECT value FROM tkv_records WHERE collection = ? AND key = ?`,
		collection, []byte(key),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mapErr(err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (t *txImpl) Put(collection, key string, value []byte) error {
	if err := t.check(collection); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.Exec(
		`INSERT INTO tkv_records (collection, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value`,
		collection, []byte(key), value,
	)
	return mapErr(err)
}

func (t *txImpl) Delete(collection, key string) error {
	if err := t.check(collection); err != nil {
		return err
	}
	_, err := t.tx.Exec(
		`DELETE FROM tkv_records WHERE collection = ? AND key = ?`,
		collection, []byte(key),
	)
	return mapErr(err)
}

// Next binds keys as blobs: sqlite orders blobs with memcmp, text would sort before every blob.
func (t *txImpl) Next(collection, after string, inclusive bool) (string, []byte, bool, error) {
	if err := t.check(collection); err != nil {
		return "", nil, false, err
	}

	op := ">"
	if inclusive {
		op = ">="
	}

	var key, value []byte
	err := t.tx.QueryRow(
		`SELECT key, value FROM tkv_records WHERE collection = ? AND key `+op+` ? ORDER BY key LIMIT 1`,
		collection, []byte(after),
	).Scan(&key, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, mapErr(err)
	}
	if value == nil {
		value = []byte{}
	}
	return string(key), value, true, nil
}

func (t *txImpl) Version() (uint64, error) {
	return readVersion(t.tx)
}

func (t *txImpl) Collections() ([]string, error) {
	names := make([]string, 0, len(t.collections))
	for n := range t.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (t *txImpl) HasCollection(name string) (bool, error) {
	_, ok := t.collections[name]
	return ok, nil
}

func (t *txImpl) CreateCollection(name string) error {
	if t.mode != db.VersionChange {
		return fmt.Errorf("%w: schema change outside of an upgrade", db.ErrInvalidState)
	}
	if _, err := t.tx.Exec(`INSERT INTO tkv_collections (name) VALUES (?)`, name); err != nil {
		return mapErr(err)
	}
	t.collections[name] = struct{}{}
	return nil
}

func (t *txImpl) DeleteCollection(name string) error {
	if t.mode != db.VersionChange {
		return fmt.Errorf("%w: schema change outside of an upgrade", db.ErrInvalidState)
	}
	if err := t.check(name); err != nil {
		return err
	}
	if _, err := t.tx.Exec(`DELETE FROM tkv_records WHERE collection = ?`, name); err != nil {
		return mapErr(err)
	}
	if _, err := t.tx.Exec(`DELETE FROM tkv_collections WHERE name = ?`, name); err != nil {
		return mapErr(err)
	}
	delete(t.collections, name)
	return nil
}

func (t *txImpl) SetVersion(version uint64) error {
	if t.mode != db.VersionChange {
		return fmt.Errorf("%w: version change outside of an upgrade", db.ErrInvalidState)
	}
	_, err := t.tx.Exec(
		`INSERT INTO tkv_meta (name, value) VALUES ('version', ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value`,
		int64(version),
	)
	return mapErr(err)
}

func (t *txImpl) Commit() error {
	return mapErr(t.tx.Commit())
}

func (t *txImpl) Rollback() error {
	return mapErr(t.tx.Rollback())
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func readVersion(q queryer) (uint64, error) {
	var version int64
	err := q.QueryRow(`SELECT value FROM tkv_meta WHERE name = 'version'`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mapErr(err)
	}
	return uint64(version), nil
}

func listCollections(q queryer) ([]string, error) {
	rows, err := q.Query(`SELECT name FROM tkv_collections ORDER BY name`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, mapErr(err)
		}
		names = append(names, n)
	}
	return names, mapErr(rows.Err())
}

// mapErr translates driver errors into the sentinel errors of package db.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrTxDone) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", db.ErrInvalidState, err)
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		// extended result codes carry the primary code in the low byte
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_FULL:
			return fmt.Errorf("%w: %w", db.ErrQuotaExceeded, err)
		case sqlite3lib.SQLITE_CONSTRAINT:
			return fmt.Errorf("%w: %w", db.ErrConstraint, err)
		case sqlite3lib.SQLITE_READONLY:
			return fmt.Errorf("%w: %w", db.ErrReadOnly, err)
		case sqlite3lib.SQLITE_TOOBIG:
			return fmt.Errorf("%w: %w", db.ErrInvalidKey, err)
		}
	}
	return err
}
