package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// MaxProvisionAttempts bounds how often in a row an accessor reopens a database whose
// collection is missing without the stored version moving forward. Rounds lost to
// another accessor that bumped the version do not count.
const MaxProvisionAttempts = 5

// Config names the collection an accessor works on
type Config struct {
	Database   string
	Collection string
}

func (c Config) String() string {
	return c.Database + "/" + c.Collection
}

// Accessor gives access to a single collection of a database.
// The connection is established lazily on first use and memoized for the lifetime
// of the accessor; concurrent first users share the same attempt.
// A failed attempt is memoized as well: create a new accessor to try again.
type Accessor struct {
	engine db.Engine
	cfg    Config

	once sync.Once
	conn *Future[db.Conn]

	// open sequence state, only touched by its callbacks which run one after another
	rounds    int
	stalled   int
	lastSeen  uint64
	lastCause error
}

// Open returns an accessor for the collection of the database. It does not touch
// the engine; the database is opened (and the collection created) on first use.
func Open(engine db.Engine, database, collection string) *Accessor {
	return &Accessor{
		engine: engine,
		cfg:    Config{Database: database, Collection: collection},
	}
}

// Config returns the database and collection of the accessor
func (a *Accessor) Config() Config {
	return a.cfg
}

// Conn returns the memoized connection. The first call starts the open sequence.
func (a *Accessor) Conn() *Future[db.Conn] {
	a.once.Do(func() {
		a.conn = newFuture[db.Conn]()
		if a.cfg.Database == "" || a.cfg.Collection == "" {
			a.conn.reject(wrapError(RetCConnectionError,
				fmt.Sprintf("cannot open %s", a.cfg), db.ErrInvalidKey))
			return
		}
		Logger.Debugf("opening %s", a.cfg)
		a.establish()
	})
	return a.conn
}

// establish opens the current version of the database and provisions the
// collection through a version bump if it is missing.
func (a *Accessor) establish() {
	req := a.engine.Open(a.cfg.Database, 0, nil)
	req.OnSuccess(func(conn db.Conn) {
		if conn.HasCollection(a.cfg.Collection) {
			a.connected(conn)
			return
		}
		version := conn.Version()
		_ = conn.Close()

		if a.rounds > 0 && version <= a.lastSeen {
			a.stalled++
		} else {
			a.stalled = 0
		}
		a.rounds++
		a.lastSeen = version

		if a.stalled >= MaxProvisionAttempts {
			a.failed(fmt.Errorf("giving up after %d attempts at version %d: %w", a.stalled, version, a.lastCause))
			return
		}
		a.provision(version + 1)
	})
	req.OnError(a.failed)
}

// provision reopens the database at version and creates the collection in the upgrade.
// Another accessor of the same database may win the race for that version, then
// the open sequence starts over.
func (a *Accessor) provision(version uint64) {
	Logger.Infof("creating collection %s (database version %d)", a.cfg, version)

	req := a.engine.Open(a.cfg.Database, version, func(ev db.UpgradeEvent) error {
		if ev.Schema.HasCollection(a.cfg.Collection) {
			return nil
		}
		return ev.Schema.CreateCollection(a.cfg.Collection)
	})
	req.OnSuccess(func(conn db.Conn) {
		if conn.HasCollection(a.cfg.Collection) {
			a.connected(conn)
			return
		}
		_ = conn.Close()
		a.retry(fmt.Errorf("%w: collection %s missing after upgrade", db.ErrNotFound, a.cfg.Collection))
	})
	req.OnError(func(err error) {
		if errors.Is(err, db.ErrVersion) {
			a.retry(err)
			return
		}
		a.failed(err)
	})
}

func (a *Accessor) retry(cause error) {
	Logger.Debugf("lost the upgrade race for %s, retrying (%v)", a.cfg, cause)
	a.lastCause = cause
	a.establish()
}

func (a *Accessor) connected(conn db.Conn) {
	Logger.Debugf("connected to %s at version %d", a.cfg, conn.Version())
	a.conn.resolve(conn)
}

func (a *Accessor) failed(err error) {
	Logger.Errorf("opening %s failed: %v", a.cfg, err)
	a.conn.reject(wrapError(RetCConnectionError, fmt.Sprintf("cannot open %s", a.cfg), err))
}

// Close closes the connection, right away if it is established or once a running
// open sequence delivers it. Running operations are not affected.
func (a *Accessor) Close() error {
	a.once.Do(func() {
		// never used, make later calls fail instead of opening
		a.conn = rejected[db.Conn](wrapError(RetCConnectionError, "accessor closed", db.ErrClosed))
	})

	conn, ok, err := a.conn.Peek()
	if !ok {
		// still opening, close the connection as soon as it arrives
		a.conn.whenDone(func(c db.Conn, openErr error) {
			if openErr == nil {
				_ = c.Close()
			}
		})
		return nil
	}
	if err == nil {
		return conn.Close()
	}
	return nil
}
