package store

import (
	"errors"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	// DefaultDatabase is the database of the default accessor
	DefaultDatabase = "files-store"
	// DefaultCollection is the collection of the default accessor
	DefaultCollection = "files"
)

// Registry owns an engine and memoizes one accessor per database and collection.
// It replaces process wide state: create one registry per application (or test)
// and pass it to whatever needs store access.
type Registry struct {
	engine    db.Engine
	accessors *xsync.MapOf[Config, *Accessor]
}

// NewRegistry creates a registry on top of engine. Closing the registry closes the engine.
func NewRegistry(engine db.Engine) *Registry {
	return &Registry{
		engine:    engine,
		accessors: xsync.NewMapOf[Config, *Accessor](),
	}
}

// Engine returns the engine of the registry
func (r *Registry) Engine() db.Engine {
	return r.engine
}

// Accessor returns the memoized accessor for the collection of the database.
// Concurrent callers receive the same accessor.
func (r *Registry) Accessor(database, collection string) *Accessor {
	cfg := Config{Database: database, Collection: collection}
	a, _ := r.accessors.LoadOrCompute(cfg, func() *Accessor {
		return Open(r.engine, database, collection)
	})
	return a
}

// Default returns the accessor of the files collection in the files-store database.
func (r *Registry) Default() *Accessor {
	return r.Accessor(DefaultDatabase, DefaultCollection)
}

// Close closes all accessors and the engine. Queued operations fail.
func (r *Registry) Close() error {
	var errs []error
	r.accessors.Range(func(_ Config, a *Accessor) bool {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	r.accessors.Clear()
	if err := r.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
