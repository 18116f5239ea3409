package db

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/tKV/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("db")

// NewEngine wraps a synchronous backend into a notification based Engine.
// It starts the event loop goroutine that runs every task and callback of the engine.
//
// Usage:
//
//	engine := db.NewEngine(maple.NewBackend(nil))
//	defer engine.Close()
//
//	req := engine.Open("files-store", 0, func(ev db.UpgradeEvent) error {
//		return ev.Schema.CreateCollection("files")
//	})
//	req.OnSuccess(func(conn db.Conn) { ... })
//	req.OnError(func(err error) { ... })
func NewEngine(backend Backend) Engine {
	e := &engineImpl{
		backend:   backend,
		tasks:     util.NewQueue[func()](),
		loopDone:  make(chan struct{}),
		databases: make(map[string]*database),
	}
	go e.run()
	return e
}

// engineImpl owns the event loop. All fields below the atomics are loop owned.
type engineImpl struct {
	backend  Backend
	tasks    *util.Queue[func()]
	loopDone chan struct{}
	closing  atomic.Bool

	stopped   bool
	databases map[string]*database
}

// database is the scheduler state of one backend database.
// Read-only transactions may overlap, every other mode runs exclusively.
type database struct {
	name    string
	raw     Database
	readers int
	writer  bool
	queue   []*transaction
}

// --------------------------------------------------------------------------
// Event Loop
// --------------------------------------------------------------------------

func (e *engineImpl) run() {
	defer close(e.loopDone)
	for {
		task, ok := e.tasks.Pop()
		if !ok {
			return
		}
		if err := protect(task); err != nil {
			Logger.Errorf("event loop task failed: %v", err)
		}
	}
}

// post schedules fn on the event loop. Returns false if the loop is gone.
func (e *engineImpl) post(fn func()) bool {
	return e.tasks.Push(fn)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Implementation() Implementation {
	return e.backend.Implementation()
}

func (e *engineImpl) Open(name string, version uint64, upgrade UpgradeFunc) Request[Conn] {
	req := &notifier[Conn]{}

	if name == "" {
		_ = req.fail(fmt.Errorf("%w: empty database name", ErrInvalidKey))
		return req
	}

	if e.closing.Load() || !e.post(func() { e.open(req, name, version, upgrade) }) {
		_ = req.fail(ErrClosed)
	}
	return req
}

func (e *engineImpl) Close() error {
	if !e.closing.CompareAndSwap(false, true) {
		<-e.loopDone
		return nil
	}

	Logger.Debugf("closing %s engine", e.backend.Implementation())

	if e.post(e.shutdown) {
		<-e.loopDone
	}

	// the loop is gone, the database map is ours now
	var errs []error
	for _, d := range e.databases {
		if err := d.raw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database %s: %w", d.name, err))
		}
	}
	if err := e.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Loop Tasks
// --------------------------------------------------------------------------

// open resolves an open request, running a version-change transaction if needed.
func (e *engineImpl) open(req *notifier[Conn], name string, version uint64, upgrade UpgradeFunc) {
	if e.stopped {
		_ = req.fail(ErrClosed)
		return
	}

	d, err := e.database(name)
	if err != nil {
		_ = req.fail(err)
		return
	}

	current, err := d.raw.Version()
	if err != nil {
		_ = req.fail(fmt.Errorf("reading version of %s: %w", name, err))
		return
	}

	target := version
	if target == 0 {
		target = max(current, 1)
	}

	switch {
	case target < current:
		_ = req.fail(fmt.Errorf("%w: requested %d, stored %d", ErrVersion, target, current))
	case target == current:
		e.connect(req, d, target)
	default:
		t := newTransaction(e, d, "", VersionChange, func(tx Tx) {
			tx.(*transaction).upgrade(target, upgrade)
		})
		t.OnComplete(func() { e.connect(req, d, target) })
		t.OnAbort(func(err error) { _ = req.fail(err) })
		e.enqueue(t)
	}
}

// connect hands out a new connection with a snapshot of the collection names.
func (e *engineImpl) connect(req *notifier[Conn], d *database, version uint64) {
	names, err := d.raw.Collections()
	if err != nil {
		_ = req.fail(fmt.Errorf("listing collections of %s: %w", d.name, err))
		return
	}

	c := &conn{
		eng:         e,
		db:          d,
		version:     version,
		collections: make(map[string]struct{}, len(names)),
		names:       names,
	}
	for _, n := range names {
		c.collections[n] = struct{}{}
	}

	Logger.Debugf("opened %s at version %d (%d collections)", d.name, version, len(names))
	if err := req.succeed(c); err != nil {
		Logger.Errorf("open handler: %v", err)
	}
}

// database returns the scheduler state for name, opening the backend database on first use.
func (e *engineImpl) database(name string) (*database, error) {
	if d, ok := e.databases[name]; ok {
		return d, nil
	}
	raw, err := e.backend.OpenDatabase(name)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", name, err)
	}
	d := &database{name: name, raw: raw}
	e.databases[name] = d
	return d, nil
}

// enqueue adds a transaction to the FIFO of its database.
func (e *engineImpl) enqueue(t *transaction) {
	if e.stopped {
		t.abortWith(ErrClosed, false)
		return
	}
	t.db.queue = append(t.db.queue, t)
	e.schedule(t.db)
}

// schedule grants queued transactions in FIFO order as long as the head is compatible
// with the running ones. Granted transactions start in their own loop task.
func (e *engineImpl) schedule(d *database) {
	for len(d.queue) > 0 {
		t := d.queue[0]
		if t.state == txFinished {
			// aborted while queued
			d.queue = d.queue[1:]
			continue
		}
		if t.mode == ReadOnly {
			if d.writer {
				return
			}
			d.readers++
		} else {
			if d.writer || d.readers > 0 {
				return
			}
			d.writer = true
		}
		d.queue = d.queue[1:]
		t.granted = true
		if !e.post(t.start) {
			t.start()
		}
	}
}

// release frees the slot of a finished transaction.
func (e *engineImpl) release(t *transaction) {
	if t.mode == ReadOnly {
		t.db.readers--
	} else {
		t.db.writer = false
	}
	e.schedule(t.db)
	e.maybeStop()
}

// shutdown rejects queued work and stops the loop once nothing is running anymore.
func (e *engineImpl) shutdown() {
	e.stopped = true
	for _, d := range e.databases {
		queued := d.queue
		d.queue = nil
		for _, t := range queued {
			t.abortWith(ErrClosed, false)
		}
	}
	e.maybeStop()
}

func (e *engineImpl) maybeStop() {
	if !e.stopped {
		return
	}
	for _, d := range e.databases {
		if d.readers > 0 || d.writer {
			return
		}
	}
	e.tasks.Close()
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

type conn struct {
	eng         *engineImpl
	db          *database
	version     uint64
	collections map[string]struct{}
	names       []string
	closed      atomic.Bool
}

func (c *conn) Name() string {
	return c.db.name
}

func (c *conn) Version() uint64 {
	return c.version
}

func (c *conn) HasCollection(name string) bool {
	_, ok := c.collections[name]
	return ok
}

func (c *conn) Collections() []string {
	return append([]string{}, c.names...)
}

func (c *conn) Transaction(collection string, mode Mode, work func(tx Tx)) (Tx, error) {
	if c.closed.Load() || c.eng.closing.Load() {
		return nil, ErrClosed
	}
	if mode != ReadOnly && mode != ReadWrite {
		return nil, fmt.Errorf("%w: cannot begin a %s transaction", ErrInvalidState, mode)
	}
	if !c.HasCollection(collection) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, collection)
	}

	t := newTransaction(c.eng, c.db, collection, mode, work)
	if !c.eng.post(func() { c.eng.enqueue(t) }) {
		return nil, ErrClosed
	}
	return t, nil
}

func (c *conn) Close() error {
	c.closed.Store(true)
	return nil
}
