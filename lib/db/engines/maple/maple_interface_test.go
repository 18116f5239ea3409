package maple

import (
	"errors"
	"strings"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
	dbtesting "github.com/ValentinKolb/tKV/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunEngineTests(t, "MapleDB", func(t testing.TB) db.Backend {
		return NewBackend(nil)
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunEngineBenchmarks(b, "MapleDB", func(t testing.TB) db.Backend {
		return NewBackend(nil)
	})
}

func TestQuota(t *testing.T) {
	engine := NewEngine(&Options{MaxSizeBytes: 64})
	defer engine.Close()

	conn := dbtesting.OpenConn(t, engine, "quota", "records")
	defer conn.Close()

	if err := dbtesting.Put(t, conn, "records", map[string][]byte{"small": []byte("value")}); err != nil {
		t.Fatalf("Put below the quota failed: %v", err)
	}

	err := dbtesting.Put(t, conn, "records", map[string][]byte{"large": []byte(strings.Repeat("x", 128))})
	if !errors.Is(err, db.ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}

	if l, _ := dbtesting.Get(t, conn, "records", "large"); l.Found {
		t.Errorf("Record of a failed commit became visible")
	}
	if l, _ := dbtesting.Get(t, conn, "records", "small"); !l.Found {
		t.Errorf("Committed record got lost")
	}

	// overwriting with a smaller value frees space
	if err := dbtesting.Put(t, conn, "records", map[string][]byte{"small": []byte("v")}); err != nil {
		t.Errorf("Shrinking write failed: %v", err)
	}
}

func TestReopenConnection(t *testing.T) {
	backend := NewBackend(nil)
	engine := db.NewEngine(backend)

	conn := dbtesting.OpenConn(t, engine, "shared", "records")
	_ = dbtesting.Put(t, conn, "records", map[string][]byte{"key": []byte("value")})

	// databases live as long as the backend, not the connection
	_ = conn.Close()
	conn = dbtesting.OpenConn(t, engine, "shared", "records")
	if l, _ := dbtesting.Get(t, conn, "records", "key"); !l.Found {
		t.Errorf("Record lost after reopening the connection")
	}
	_ = engine.Close()
}
