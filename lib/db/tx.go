package db

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

type txState int

const (
	txQueued txState = iota
	txRunning
	txFinished
)

// transaction implements Tx on top of a backend RawTx.
//
// Lifecycle: queued -> running -> finished. A running transaction commits as soon as
// its work function and all handlers returned and no request is pending (auto-commit).
// Everything except the handler registration and Abort happens on the event loop.
type transaction struct {
	id         uuid.UUID
	eng        *engineImpl
	db         *database
	collection string
	mode       Mode
	work       func(tx Tx)

	raw     RawTx
	state   txState
	granted bool
	pending int
	active  atomic.Bool // work or one of our handlers is running
	abort   atomic.Bool // Abort was called, honoured at the next loop checkpoint

	done *notifier[struct{}] // success = complete, failure = abort
	errs *notifier[struct{}] // failure only
}

func newTransaction(e *engineImpl, d *database, collection string, mode Mode, work func(tx Tx)) *transaction {
	return &transaction{
		id:         uuid.New(),
		eng:        e,
		db:         d,
		collection: collection,
		mode:       mode,
		work:       work,
		done:       &notifier[struct{}]{},
		errs:       &notifier[struct{}]{},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.Tx)
// --------------------------------------------------------------------------

func (t *transaction) ID() uuid.UUID {
	return t.id
}

func (t *transaction) Mode() Mode {
	return t.mode
}

func (t *transaction) ObjectStore() ObjectStore {
	return &objectStore{t: t, name: t.collection}
}

func (t *transaction) OnComplete(fn func()) {
	t.done.OnSuccess(func(struct{}) { fn() })
}

func (t *transaction) OnError(fn func(err error)) {
	t.errs.OnError(fn)
}

func (t *transaction) OnAbort(fn func(err error)) {
	t.done.OnError(fn)
}

func (t *transaction) Abort() {
	if !t.abort.CompareAndSwap(false, true) {
		return
	}
	if !t.eng.post(func() { t.abortWith(ErrAborted, false) }) {
		Logger.Warningf("tx %s: abort after engine shutdown ignored", t.id)
	}
}

// --------------------------------------------------------------------------
// Lifecycle (loop only)
// --------------------------------------------------------------------------

// start begins the backend transaction and runs the work function.
func (t *transaction) start() {
	if t.abort.Load() {
		t.abortWith(ErrAborted, false)
	}
	if t.state == txFinished {
		t.eng.release(t)
		return
	}

	raw, err := t.db.raw.Begin(t.mode)
	if err != nil {
		t.state = txFinished
		if herr := t.done.fail(abortCause(fmt.Errorf("begin %s transaction: %w", t.mode, err))); herr != nil {
			Logger.Errorf("tx %s: abort handler: %v", t.id, herr)
		}
		t.eng.release(t)
		return
	}

	t.raw = raw
	t.state = txRunning
	Logger.Debugf("tx %s: started (%s, collection=%q)", t.id, t.mode, t.collection)

	t.call(func() error {
		t.work(t)
		return nil
	})
	t.maybeCommit()
}

// call runs fn as one of our callbacks. The transaction is active meanwhile;
// a panic or handler error aborts it.
func (t *transaction) call(fn func() error) {
	var ferr error
	t.active.Store(true)
	err := protect(func() { ferr = fn() })
	t.active.Store(false)

	if err == nil {
		err = ferr
	}
	if err != nil {
		t.abortWith(err, true)
	}
}

// maybeCommit commits once nothing is pending anymore.
func (t *transaction) maybeCommit() {
	if t.state != txRunning || t.active.Load() {
		return
	}
	if t.abort.Load() {
		t.abortWith(ErrAborted, false)
		return
	}
	if t.pending > 0 {
		return
	}

	if err := t.raw.Commit(); err != nil {
		t.abortWith(fmt.Errorf("commit: %w", err), true)
		return
	}

	t.state = txFinished
	Logger.Debugf("tx %s: committed", t.id)
	if err := t.done.succeed(struct{}{}); err != nil {
		Logger.Errorf("tx %s: complete handler: %v", t.id, err)
	}
	t.eng.release(t)
}

// abortWith rolls back the transaction. fromRequest notifies the error handlers first.
func (t *transaction) abortWith(cause error, fromRequest bool) {
	if t.state == txFinished {
		return
	}
	wasRunning := t.state == txRunning
	t.state = txFinished

	if wasRunning {
		if err := t.raw.Rollback(); err != nil {
			// a failed commit already closed the backend transaction
			Logger.Debugf("tx %s: rollback: %v", t.id, err)
		}
	}

	Logger.Debugf("tx %s: aborted: %v", t.id, cause)

	if fromRequest {
		if err := t.errs.fail(cause); err != nil {
			Logger.Errorf("tx %s: error handler: %v", t.id, err)
		}
	}
	if err := t.done.fail(abortCause(cause)); err != nil {
		Logger.Errorf("tx %s: abort handler: %v", t.id, err)
	}

	// queued transactions hold no slot, granted ones release in start
	if wasRunning {
		t.eng.release(t)
	}
}

// upgrade is the work of a version-change transaction.
func (t *transaction) upgrade(target uint64, fn UpgradeFunc) {
	current, err := t.raw.Version()
	if err != nil {
		t.abortWith(fmt.Errorf("reading version: %w", err), true)
		return
	}
	if target < current {
		t.abortWith(fmt.Errorf("%w: requested %d, stored %d", ErrVersion, target, current), true)
		return
	}
	if target == current {
		// a concurrent open already upgraded to this version
		return
	}

	if err := t.raw.SetVersion(target); err != nil {
		t.abortWith(fmt.Errorf("setting version: %w", err), true)
		return
	}

	if fn == nil {
		return
	}
	Logger.Infof("upgrading %s from version %d to %d", t.db.name, current, target)
	if err := fn(UpgradeEvent{OldVersion: current, NewVersion: target, Schema: &schema{t: t}}); err != nil {
		t.abortWith(fmt.Errorf("upgrade: %w", err), true)
	}
}

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// issue queues a request on the transaction. The request runs in its own loop task,
// after the current callback returned, so handlers registered right after issuing
// are in place before it completes.
func issue[T any](t *transaction, n *notifier[T], exec func(raw RawTx) (T, error)) {
	if t.abort.Load() {
		fail := func() { _ = n.fail(ErrAborted) }
		if !t.eng.post(fail) {
			fail()
		}
		return
	}
	if !t.active.Load() || t.state != txRunning {
		fail := func() { _ = n.fail(ErrTransactionInactive) }
		if !t.eng.post(fail) {
			fail()
		}
		return
	}

	t.pending++
	t.eng.post(func() { execute(t, n, exec) })
}

func execute[T any](t *transaction, n *notifier[T], exec func(raw RawTx) (T, error)) {
	t.pending--

	if t.abort.Load() {
		t.abortWith(ErrAborted, false)
	}
	if t.state != txRunning {
		if err := n.fail(ErrAborted); err != nil {
			Logger.Errorf("tx %s: error handler: %v", t.id, err)
		}
		return
	}

	result, err := exec(t.raw)
	if err != nil {
		t.call(func() error { return n.fail(err) })
		t.abortWith(err, true)
		return
	}

	t.call(func() error { return n.succeed(result) })
	t.maybeCommit()
}

// objectStore implements ObjectStore for one transaction.
type objectStore struct {
	t    *transaction
	name string
}

func (s *objectStore) Name() string {
	return s.name
}

func (s *objectStore) Transaction() Tx {
	return s.t
}

func (s *objectStore) Put(key string, value []byte) Request[struct{}] {
	n := &notifier[struct{}]{}
	// the caller may reuse its buffer once Put returned
	value = append([]byte(nil), value...)
	issue(s.t, n, func(raw RawTx) (struct{}, error) {
		if err := s.writable(key); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, raw.Put(s.name, key, value)
	})
	return n
}

func (s *objectStore) Get(key string) Request[Lookup] {
	n := &notifier[Lookup]{}
	issue(s.t, n, func(raw RawTx) (Lookup, error) {
		if err := s.readable(key); err != nil {
			return Lookup{}, err
		}
		v, ok, err := raw.Get(s.name, key)
		return Lookup{Value: v, Found: ok}, err
	})
	return n
}

func (s *objectStore) Delete(key string) Request[struct{}] {
	n := &notifier[struct{}]{}
	issue(s.t, n, func(raw RawTx) (struct{}, error) {
		if err := s.writable(key); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, raw.Delete(s.name, key)
	})
	return n
}

func (s *objectStore) OpenCursor() Request[Cursor] {
	n := &notifier[Cursor]{}
	c := &cursor{store: s, n: n}
	c.advance("", true)
	return n
}

func (s *objectStore) readable(key string) error {
	if s.name == "" {
		return fmt.Errorf("%w: no collection in a %s transaction", ErrNotFound, s.t.mode)
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return nil
}

func (s *objectStore) writable(key string) error {
	if s.t.mode == ReadOnly {
		return ErrReadOnly
	}
	return s.readable(key)
}

// cursor drives a forward walk over one collection.
type cursor struct {
	store *objectStore
	n     *notifier[Cursor]
}

func (c *cursor) advance(after string, inclusive bool) {
	issue(c.store.t, c.n, func(raw RawTx) (Cursor, error) {
		if c.store.name == "" {
			return nil, fmt.Errorf("%w: no collection in a %s transaction", ErrNotFound, c.store.t.mode)
		}
		k, v, ok, err := raw.Next(c.store.name, after, inclusive)
		if err != nil || !ok {
			return nil, err
		}
		return &position{c: c, key: k, value: v}, nil
	})
}

// position is the record a cursor currently points at.
type position struct {
	c         *cursor
	key       string
	value     []byte
	continued bool
}

func (p *position) Key() string {
	return p.key
}

func (p *position) Value() []byte {
	return p.value
}

func (p *position) Continue() error {
	t := p.c.store.t
	if p.continued {
		return fmt.Errorf("%w: cursor already advanced", ErrInvalidState)
	}
	if !t.active.Load() || t.state != txRunning {
		return ErrTransactionInactive
	}
	p.continued = true
	p.c.advance(p.key, false)
	return nil
}

// --------------------------------------------------------------------------
// Schema (version-change transactions only)
// --------------------------------------------------------------------------

type schema struct {
	t *transaction
}

func (s *schema) check(name string) error {
	if !s.t.active.Load() || s.t.state != txRunning {
		return ErrTransactionInactive
	}
	if name == "" {
		return fmt.Errorf("%w: empty collection name", ErrInvalidKey)
	}
	return nil
}

func (s *schema) CreateCollection(name string) error {
	if err := s.check(name); err != nil {
		return err
	}
	ok, err := s.t.raw.HasCollection(name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: collection %s already exists", ErrConstraint, name)
	}
	return s.t.raw.CreateCollection(name)
}

func (s *schema) DeleteCollection(name string) error {
	if err := s.check(name); err != nil {
		return err
	}
	ok, err := s.t.raw.HasCollection(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s.t.raw.DeleteCollection(name)
}

func (s *schema) HasCollection(name string) bool {
	if s.check(name) != nil {
		return false
	}
	ok, err := s.t.raw.HasCollection(name)
	return err == nil && ok
}

func (s *schema) Collections() []string {
	if s.check("_") != nil {
		return nil
	}
	names, err := s.t.raw.Collections()
	if err != nil {
		Logger.Warningf("tx %s: listing collections: %v", s.t.id, err)
		return nil
	}
	return names
}
