package maple

import (
	"fmt"
	"sort"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the maple backend
type Options struct {
	// MaxSizeBytes limits the summed key and value sizes per database.
	// Commits that would grow a database beyond the limit fail with db.ErrQuotaExceeded (0 = unlimited).
	MaxSizeBytes int64
}

// DefaultOptions returns the default maple options
func DefaultOptions() *Options {
	return &Options{
		MaxSizeBytes: 0,
	}
}

// --------------------------------------------------------------------------
// Backend
// --------------------------------------------------------------------------

// backendImpl keeps every database in memory. Nothing survives the process.
type backendImpl struct {
	opts      Options
	databases *xsync.MapOf[string, *databaseImpl]
}

// NewBackend creates a new in-memory backend with the specified options (optional)
func NewBackend(opts *Options) db.Backend {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &backendImpl{
		opts:      *opts,
		databases: xsync.NewMapOf[string, *databaseImpl](),
	}
}

// NewEngine creates an engine on top of a new in-memory backend
func NewEngine(opts *Options) db.Engine {
	return db.NewEngine(NewBackend(opts))
}

func (b *backendImpl) Implementation() db.Implementation {
	return db.ImplMaple
}

func (b *backendImpl) OpenDatabase(name string) (db.Database, error) {
	d, _ := b.databases.LoadOrCompute(name, func() *databaseImpl {
		return &databaseImpl{
			name:        name,
			maxSize:     b.opts.MaxSizeBytes,
			collections: make(map[string]*collection),
		}
	})
	return d, nil
}

func (b *backendImpl) Close() error {
	b.databases.Clear()
	return nil
}

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

type databaseImpl struct {
	name        string
	maxSize     int64
	version     uint64
	sizeBytes   int64
	collections map[string]*collection
}

// collection stores the committed records. keys is a sorted snapshot used by
// cursors, rebuilt lazily after each commit that touched the collection.
type collection struct {
	data *xsync.MapOf[string, []byte]
	keys []string
}

func newCollection() *collection {
	return &collection{data: xsync.NewMapOf[string, []byte]()}
}

func (c *collection) sortedKeys() []string {
	if c.keys == nil {
		keys := make([]string, 0, c.data.Size())
		c.data.Range(func(k string, _ []byte) bool {
			keys = append(keys, k)
			return true
		})
		sort.Strings(keys)
		c.keys = keys
	}
	return c.keys
}

func (d *databaseImpl) Name() string {
	return d.name
}

func (d *databaseImpl) Version() (uint64, error) {
	return d.version, nil
}

func (d *databaseImpl) Collections() ([]string, error) {
	names := make([]string, 0, len(d.collections))
	for n := range d.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (d *databaseImpl) Begin(mode db.Mode) (db.RawTx, error) {
	return &txImpl{
		db:      d,
		mode:    mode,
		pending: make(map[string]*overlay),
	}, nil
}

func (d *databaseImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Transaction
// --------------------------------------------------------------------------

// write is a buffered Put (deleted=false) or Delete.
type write struct {
	value   []byte
	deleted bool
}

// overlay buffers the changes of one collection until commit.
type overlay struct {
	schema  bool // created or dropped in this transaction
	exists  bool // only valid if schema is set
	writes  map[string]write
	visible []string // merged sorted keys, nil = stale
}

// txImpl buffers writes so rollback is free and readers never see uncommitted data.
type txImpl struct {
	db         *databaseImpl
	mode       db.Mode
	pending    map[string]*overlay
	version    uint64
	versionSet bool
	finished   bool
}

func (t *txImpl) overlayOf(name string) *overlay {
	o, ok := t.pending[name]
	if !ok {
		o = &overlay{writes: make(map[string]write)}
		t.pending[name] = o
	}
	return o
}

// base returns the committed collection unless it was replaced in this transaction.
func (t *txImpl) base(name string) *collection {
	if o, ok := t.pending[name]; ok && o.schema {
		return nil
	}
	return t.db.collections[name]
}

func (t *txImpl) exists(name string) bool {
	if o, ok := t.pending[name]; ok && o.schema {
		return o.exists
	}
	_, ok := t.db.collections[name]
	return ok
}

func (t *txImpl) check(name string) error {
	if t.finished {
		return fmt.Errorf("%w: maple transaction finished", db.ErrInvalidState)
	}
	if !t.exists(name) {
		return fmt.Errorf("%w: %s", db.ErrNotFound, name)
	}
	return nil
}

func (t *txImpl) Get(name, key string) ([]byte, bool, error) {
	if err := t.check(name); err != nil {
		return nil, false, err
	}
	if o, ok := t.pending[name]; ok {
		if w, ok := o.writes[key]; ok {
			if w.deleted {
				return nil, false, nil
			}
			return append([]byte(nil), w.value...), true, nil
		}
	}
	if c := t.base(name); c != nil {
		if v, ok := c.data.Load(key); ok {
			return append([]byte(nil), v...), true, nil
		}
	}
	return nil, false, nil
}

func (t *txImpl) Put(name, key string, value []byte) error {
	if err := t.check(name); err != nil {
		return err
	}
	o := t.overlayOf(name)
	o.writes[key] = write{value: append([]byte(nil), value...)}
	o.visible = nil
	return nil
}

func (t *txImpl) Delete(name, key string) error {
	if err := t.check(name); err != nil {
		return err
	}
	o := t.overlayOf(name)
	o.writes[key] = write{deleted: true}
	o.visible = nil
	return nil
}

func (t *txImpl) Next(name, after string, inclusive bool) (string, []byte, bool, error) {
	if err := t.check(name); err != nil {
		return "", nil, false, err
	}

	keys := t.visibleKeys(name)
	i := sort.SearchStrings(keys, after)
	if !inclusive && i < len(keys) && keys[i] == after {
		i++
	}
	if i >= len(keys) {
		return "", nil, false, nil
	}

	k := keys[i]
	v, _, err := t.Get(name, k)
	return k, v, true, err
}

// visibleKeys merges the committed keys with the buffered writes.
func (t *txImpl) visibleKeys(name string) []string {
	o, ok := t.pending[name]
	var base []string
	if c := t.base(name); c != nil {
		base = c.sortedKeys()
	}
	if !ok || len(o.writes) == 0 {
		return base
	}
	if o.visible != nil {
		return o.visible
	}

	merged := make([]string, 0, len(base)+len(o.writes))
	for _, k := range base {
		if w, ok := o.writes[k]; !ok || !w.deleted {
			merged = append(merged, k)
		}
	}
	for k, w := range o.writes {
		if w.deleted {
			continue
		}
		if i := sort.SearchStrings(base, k); i < len(base) && base[i] == k {
			continue
		}
		merged = append(merged, k)
	}
	sort.Strings(merged)
	o.visible = merged
	return merged
}

func (t *txImpl) Version() (uint64, error) {
	if t.versionSet {
		return t.version, nil
	}
	return t.db.version, nil
}

func (t *txImpl) Collections() ([]string, error) {
	seen := make(map[string]struct{})
	for n := range t.db.collections {
		if t.exists(n) {
			seen[n] = struct{}{}
		}
	}
	for n, o := range t.pending {
		if o.schema && o.exists {
			seen[n] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (t *txImpl) HasCollection(name string) (bool, error) {
	return t.exists(name), nil
}

func (t *txImpl) CreateCollection(name string) error {
	if t.mode != db.VersionChange {
		return fmt.Errorf("%w: schema change outside of an upgrade", db.ErrInvalidState)
	}
	t.pending[name] = &overlay{schema: true, exists: true, writes: make(map[string]write)}
	return nil
}

func (t *txImpl) DeleteCollection(name string) error {
	if t.mode != db.VersionChange {
		return fmt.Errorf("%w: schema change outside of an upgrade", db.ErrInvalidState)
	}
	t.pending[name] = &overlay{schema: true, exists: false, writes: make(map[string]write)}
	return nil
}

func (t *txImpl) SetVersion(version uint64) error {
	if t.mode != db.VersionChange {
		return fmt.Errorf("%w: version change outside of an upgrade", db.ErrInvalidState)
	}
	t.version, t.versionSet = version, true
	return nil
}

func (t *txImpl) Commit() error {
	if t.finished {
		return fmt.Errorf("%w: maple transaction finished", db.ErrInvalidState)
	}
	t.finished = true

	size := t.db.sizeBytes + t.sizeDelta()
	if t.db.maxSize > 0 && size > t.db.maxSize {
		return fmt.Errorf("%w: database %s would grow to %d bytes (limit %d)", db.ErrQuotaExceeded, t.db.name, size, t.db.maxSize)
	}

	for name, o := range t.pending {
		if o.schema {
			if o.exists {
				t.db.collections[name] = newCollection()
			} else {
				delete(t.db.collections, name)
				continue
			}
		}
		c := t.db.collections[name]
		for k, w := range o.writes {
			if w.deleted {
				c.data.Delete(k)
			} else {
				c.data.Store(k, w.value)
			}
		}
		c.keys = nil
	}

	t.db.sizeBytes = size
	if t.versionSet {
		t.db.version = t.version
	}
	return nil
}

// sizeDelta computes how much the committed size changes with this transaction.
func (t *txImpl) sizeDelta() int64 {
	var delta int64
	for name, o := range t.pending {
		if o.schema {
			// the committed collection (if any) is dropped
			if c, ok := t.db.collections[name]; ok {
				c.data.Range(func(k string, v []byte) bool {
					delta -= int64(len(k) + len(v))
					return true
				})
			}
		}
		base := t.base(name)
		for k, w := range o.writes {
			if base != nil {
				if old, ok := base.data.Load(k); ok {
					delta -= int64(len(k) + len(old))
				}
			}
			if !w.deleted {
				delta += int64(len(k) + len(w.value))
			}
		}
	}
	return delta
}

func (t *txImpl) Rollback() error {
	if t.finished {
		return fmt.Errorf("%w: maple transaction finished", db.ErrInvalidState)
	}
	t.finished = true
	t.pending = nil
	return nil
}
