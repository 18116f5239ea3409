package testing

import (
	"errors"
	"sync/atomic"

	"github.com/ValentinKolb/tKV/lib/db"
)

// ErrInjected is returned by every operation a FaultyBackend makes fail
var ErrInjected = errors.New("injected fault")

// FaultyBackend wraps a backend and injects failures into its transactions.
// Cursor steps (RawTx.Next) fail with ErrInjected once a transaction made FailNextAfter
// successful steps. Commits fail while FailCommit is set.
type FaultyBackend struct {
	db.Backend
	FailNextAfter int
	FailCommit    atomic.Bool
}

// NewFaultyBackend wraps inner. A negative failNextAfter never fails cursor steps.
func NewFaultyBackend(inner db.Backend, failNextAfter int) *FaultyBackend {
	return &FaultyBackend{Backend: inner, FailNextAfter: failNextAfter}
}

func (b *FaultyBackend) OpenDatabase(name string) (db.Database, error) {
	inner, err := b.Backend.OpenDatabase(name)
	if err != nil {
		return nil, err
	}
	return &faultyDatabase{Database: inner, backend: b}, nil
}

type faultyDatabase struct {
	db.Database
	backend *FaultyBackend
}

func (d *faultyDatabase) Begin(mode db.Mode) (db.RawTx, error) {
	inner, err := d.Database.Begin(mode)
	if err != nil {
		return nil, err
	}
	return &faultyTx{RawTx: inner, backend: d.backend}, nil
}

type faultyTx struct {
	db.RawTx
	backend *FaultyBackend
	steps   int
}

func (t *faultyTx) Next(collection, after string, inclusive bool) (string, []byte, bool, error) {
	if t.backend.FailNextAfter >= 0 && t.steps >= t.backend.FailNextAfter {
		return "", nil, false, ErrInjected
	}
	t.steps++
	return t.RawTx.Next(collection, after, inclusive)
}

func (t *faultyTx) Commit() error {
	if t.backend.FailCommit.Load() {
		_ = t.RawTx.Rollback()
		return ErrInjected
	}
	return t.RawTx.Commit()
}
