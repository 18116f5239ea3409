package bolt

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
	dbtesting "github.com/ValentinKolb/tKV/lib/db/testing"
)

func newBackend(t testing.TB, dir string) db.Backend {
	backend, err := NewBackend(&Options{Dir: dir, NoSync: true})
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	return backend
}

func Test(t *testing.T) {
	dbtesting.RunEngineTests(t, "BoltDB", func(t testing.TB) db.Backend {
		return newBackend(t, t.TempDir())
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunEngineBenchmarks(b, "BoltDB", func(t testing.TB) db.Backend {
		return newBackend(t, t.TempDir())
	})
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	engine := db.NewEngine(newBackend(t, dir))
	conn := dbtesting.OpenConn(t, engine, "persist", "records")
	if err := dbtesting.Put(t, conn, "records", map[string][]byte{"key": []byte("value"), "empty": {}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	version := conn.Version()
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	engine = db.NewEngine(newBackend(t, dir))
	defer engine.Close()
	conn, err := dbtesting.Await(t, engine.Open("persist", 0, nil))
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if conn.Version() != version {
		t.Errorf("Expected version %d after reopening, got %d", version, conn.Version())
	}
	if got := conn.Collections(); len(got) != 1 || got[0] != "records" {
		t.Errorf("Expected only the records collection, got %v", got)
	}

	l, _ := dbtesting.Get(t, conn, "records", "key")
	if !l.Found || string(l.Value) != "value" {
		t.Errorf("Record lost after reopening: %v", l)
	}
	l, _ = dbtesting.Get(t, conn, "records", "empty")
	if !l.Found || len(l.Value) != 0 {
		t.Errorf("Empty value lost after reopening: %v", l)
	}
}

func TestReservedCollection(t *testing.T) {
	engine := db.NewEngine(newBackend(t, t.TempDir()))
	defer engine.Close()

	_, err := dbtesting.Await(t, engine.Open("reserved", 1, func(ev db.UpgradeEvent) error {
		return ev.Schema.CreateCollection(string(metaBucket))
	}))
	if !errors.Is(err, db.ErrConstraint) {
		t.Errorf("Expected ErrConstraint for the meta bucket, got %v", err)
	}
}

func TestNameEscaping(t *testing.T) {
	b := &backendImpl{opts: Options{Dir: "/data"}}
	if got := b.path("../etc/passwd"); got != "/data/..%2Fetc%2Fpasswd.bolt" {
		t.Errorf("Database name escaped the data dir: %s", got)
	}
}
