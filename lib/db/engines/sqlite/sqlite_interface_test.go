package sqlite

import (
	"errors"
	"strings"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
	dbtesting "github.com/ValentinKolb/tKV/lib/db/testing"
)

func newBackend(t testing.TB, opts *Options) db.Backend {
	backend, err := NewBackend(opts)
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	return backend
}

func Test(t *testing.T) {
	dbtesting.RunEngineTests(t, "SQLite", func(t testing.TB) db.Backend {
		return newBackend(t, &Options{Dir: t.TempDir()})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunEngineBenchmarks(b, "SQLite", func(t testing.TB) db.Backend {
		return newBackend(t, &Options{Dir: t.TempDir()})
	})
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	engine := db.NewEngine(newBackend(t, &Options{Dir: dir}))
	conn := dbtesting.OpenConn(t, engine, "persist", "records")
	if err := dbtesting.Put(t, conn, "records", map[string][]byte{"key": []byte("value")}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	version := conn.Version()
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	engine = db.NewEngine(newBackend(t, &Options{Dir: dir}))
	defer engine.Close()
	conn, err := dbtesting.Await(t, engine.Open("persist", 0, nil))
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if conn.Version() != version {
		t.Errorf("Expected version %d after reopening, got %d", version, conn.Version())
	}

	l, _ := dbtesting.Get(t, conn, "records", "key")
	if !l.Found || string(l.Value) != "value" {
		t.Errorf("Record lost after reopening: %v", l)
	}
}

func TestQuota(t *testing.T) {
	engine := db.NewEngine(newBackend(t, &Options{Dir: t.TempDir(), MaxPageCount: 16}))
	defer engine.Close()

	conn := dbtesting.OpenConn(t, engine, "quota", "records")

	err := dbtesting.Put(t, conn, "records", map[string][]byte{"large": []byte(strings.Repeat("x", 1<<20))})
	if !errors.Is(err, db.ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}
	if l, _ := dbtesting.Get(t, conn, "records", "large"); l.Found {
		t.Errorf("Record of a failed write became visible")
	}
}

func TestDSN(t *testing.T) {
	b := &backendImpl{opts: Options{Dir: "/data", BusyTimeout: 0, MaxPageCount: 8}}
	dsn := b.dsn("a/b")
	if !strings.HasPrefix(dsn, "/data/a%2Fb.sqlite?") {
		t.Errorf("Unexpected path in %s", dsn)
	}
	if !strings.Contains(dsn, "max_page_count%288%29") {
		t.Errorf("Missing page limit in %s", dsn)
	}
}
