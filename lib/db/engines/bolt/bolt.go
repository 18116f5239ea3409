package bolt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ValentinKolb/tKV/lib/db"
	bolt "go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"
)

// metaBucket holds the schema version. It is hidden from the collection list.
var (
	metaBucket = []byte("__tkv_meta")
	versionKey = []byte("version")
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the bolt backend
type Options struct {
	// Dir is the directory that holds one file per database
	Dir string
	// Timeout bounds the wait for the file lock of a database (0 = wait forever)
	Timeout time.Duration
	// NoSync skips fsync after each commit. Faster, but a crash may lose commits.
	NoSync bool
}

// DefaultOptions returns the default bolt options
func DefaultOptions() *Options {
	return &Options{
		Dir:     "./data",
		Timeout: 5 * time.Second,
	}
}

// --------------------------------------------------------------------------
// Backend
// --------------------------------------------------------------------------

type backendImpl struct {
	opts Options
}

// NewBackend creates a new bolt backend with the specified options (optional)
func NewBackend(opts *Options) (db.Backend, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &backendImpl{opts: *opts}, nil
}

// NewEngine creates an engine on top of a new bolt backend
func NewEngine(opts *Options) (db.Engine, error) {
	backend, err := NewBackend(opts)
	if err != nil {
		return nil, err
	}
	return db.NewEngine(backend), nil
}

func (b *backendImpl) Implementation() db.Implementation {
	return db.ImplBolt
}

// path maps a database name to its file. Names are escaped so they can never leave Dir.
func (b *backendImpl) path(name string) string {
	return filepath.Join(b.opts.Dir, url.PathEscape(name)+".bolt")
}

func (b *backendImpl) OpenDatabase(name string) (db.Database, error) {
	raw, err := bolt.Open(b.path(name), 0o600, &bolt.Options{
		Timeout: b.opts.Timeout,
		NoSync:  b.opts.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("opening bolt file: %w", err)
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
	raw  *bolt.DB
}

func (d *databaseImpl) Name() string {
	return d.name
}

func (d *databaseImpl) Version() (version uint64, err error) {
	err = d.raw.View(func(tx *bolt.Tx) error {
		version = readVersion(tx)
		return nil
	})
	return version, err
}

func (d *databaseImpl) Collections() (names []string, err error) {
	err = d.raw.View(func(tx *bolt.Tx) error {
		names = listBuckets(tx)
		return nil
	})
	return names, err
}

func (d *databaseImpl) Begin(mode db.Mode) (db.RawTx, error) {
	tx, err := d.raw.Begin(mode != db.ReadOnly)
	if err != nil {
		return nil, mapErr(err)
	}
	return &txImpl{tx: tx, mode: mode}, nil
}

func (d *databaseImpl) Close() error {
	return d.raw.Close()
}

// --------------------------------------------------------------------------
// Transaction
// --------------------------------------------------------------------------

type txImpl struct {
	tx   *bolt.Tx
	mode db.Mode
}

func (t *txImpl) bucket(name string) (*bolt.Bucket, error) {
	if reserved(name) {
		return nil, fmt.Errorf("%w: %s", db.ErrNotFound, name)
	}
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("%w: %s", db.ErrNotFound, name)
	}
	return b, nil
}

func (t *txImpl) Get(collection, key string) ([]byte, bool, error) {
	b, err := t.bucket(collection)
	if err != nil {
		return nil, false, err
	}
	// Seek instead of Get: Get cannot tell an empty value from a missing key
	k, v := b.Cursor().Seek([]byte(key))
	if k == nil || !bytes.Equal(k, []byte(key)) || v == nil {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (t *txImpl) Put(collection, key string, value []byte) error {
	b, err := t.bucket(collection)
	if err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	return mapErr(b.Put([]byte(key), value))
}

func (t *txImpl) Delete(collection, key string) error {
	b, err := t.bucket(collection)
	if err != nil {
		return err
	}
	return mapErr(b.Delete([]byte(key)))
}

func (t *txImpl) Next(collection, after string, inclusive bool) (string, []byte, bool, error) {
	b, err := t.bucket(collection)
	if err != nil {
		return "", nil, false, err
	}

	c := b.Cursor()
	k, v := c.Seek([]byte(after))
	if k != nil && !inclusive && string(k) == after {
		k, v = c.Next()
	}
	// skip nested buckets, they are never created by this backend
	for k != nil && v == nil {
		k, v = c.Next()
	}
	if k == nil {
		return "", nil, false, nil
	}
	return string(k), append([]byte{}, v...), true, nil
}

func (t *txImpl) Version() (uint64, error) {
	return readVersion(t.tx), nil
}

func (t *txImpl) Collections() ([]string, error) {
	return listBuckets(t.tx), nil
}

func (t *txImpl) HasCollection(name string) (bool, error) {
	if reserved(name) {
		return false, nil
	}
	return t.tx.Bucket([]byte(name)) != nil, nil
}

func (t *txImpl) CreateCollection(name string) error {
	if reserved(name) {
		return fmt.Errorf("%w: collection name %s is reserved", db.ErrConstraint, name)
	}
	_, err := t.tx.CreateBucket([]byte(name))
	return mapErr(err)
}

func (t *txImpl) DeleteCollection(name string) error {
	if reserved(name) {
		return fmt.Errorf("%w: %s", db.ErrNotFound, name)
	}
	return mapErr(t.tx.DeleteBucket([]byte(name)))
}

func (t *txImpl) SetVersion(version uint64) error {
	if t.mode != db.VersionChange {
		return fmt.Errorf("%w: version change outside of an upgrade", db.ErrInvalidState)
	}
	meta, err := t.tx.CreateBucketIfNotExists(metaBucket)
	if err != nil {
		return mapErr(err)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], version)
	return mapErr(meta.Put(versionKey, buf[:]))
}

func (t *txImpl) Commit() error {
	if t.mode == db.ReadOnly {
		// read-only bolt transactions can only be rolled back
		return mapErr(t.tx.Rollback())
	}
	return mapErr(t.tx.Commit())
}

func (t *txImpl) Rollback() error {
	return mapErr(t.tx.Rollback())
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func reserved(name string) bool {
	return name == string(metaBucket)
}

func readVersion(tx *bolt.Tx) uint64 {
	meta := tx.Bucket(metaBucket)
	if meta == nil {
		return 0
	}
	v := meta.Get(versionKey)
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func listBuckets(tx *bolt.Tx) []string {
	var names []string
	_ = tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
		if !reserved(string(name)) {
			names = append(names, string(name))
		}
		return nil
	})
	sort.Strings(names)
	return names
}

// mapErr translates bolt errors into the sentinel errors of package db.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bolterrors.ErrTxClosed), errors.Is(err, bolterrors.ErrDatabaseNotOpen):
		return fmt.Errorf("%w: %w", db.ErrInvalidState, err)
	case errors.Is(err, bolterrors.ErrTxNotWritable), errors.Is(err, bolterrors.ErrDatabaseReadOnly):
		return fmt.Errorf("%w: %w", db.ErrReadOnly, err)
	case errors.Is(err, bolterrors.ErrBucketExists):
		return fmt.Errorf("%w: %w", db.ErrConstraint, err)
	case errors.Is(err, bolterrors.ErrBucketNotFound):
		return fmt.Errorf("%w: %w", db.ErrNotFound, err)
	case errors.Is(err, bolterrors.ErrKeyRequired), errors.Is(err, bolterrors.ErrKeyTooLarge),
		errors.Is(err, bolterrors.ErrValueTooLarge), errors.Is(err, bolterrors.ErrBucketNameRequired):
		return fmt.Errorf("%w: %w", db.ErrInvalidKey, err)
	case errors.Is(err, bolterrors.ErrTimeout):
		return fmt.Errorf("%w: %w", db.ErrInvalidState, err)
	default:
		return err
	}
}
