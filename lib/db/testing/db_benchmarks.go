package testing

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
)

// RunEngineBenchmarks runs all benchmarks against an engine built on top of the backends of factory
func RunEngineBenchmarks(b *testing.B, name string, factory BackendFactory) {
	newConn := func(b *testing.B) db.Conn {
		engine := db.NewEngine(factory(b))
		b.Cleanup(func() { _ = engine.Close() })
		return OpenConn(b, engine, "bench", testCollection)
	}

	b.Run(name, func(b *testing.B) {
		b.Run("Put", func(b *testing.B) {
			benchmarkPut(b, newConn(b))
		})

		b.Run("PutBatch", func(b *testing.B) {
			benchmarkPutBatch(b, newConn(b))
		})

		b.Run("PutLargeValue", func(b *testing.B) {
			benchmarkPutLargeValue(b, newConn(b))
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, newConn(b))
		})

		b.Run("Cursor", func(b *testing.B) {
			benchmarkCursor(b, newConn(b))
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, newConn(b))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func prefill(b *testing.B, conn db.Conn, n int) []string {
	keys := make([]string, n)
	kv := make(map[string][]byte, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		kv[keys[i]] = []byte(fmt.Sprintf("test-value-%d", i))
	}
	if err := Put(b, conn, testCollection, kv); err != nil {
		b.Fatalf("prefill failed: %v", err)
	}
	return keys
}

// One transaction per record
func benchmarkPut(b *testing.B, conn db.Conn) {
	value := []byte("test-value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		if err := RunTx(b, conn, testCollection, db.ReadWrite, func(tx db.Tx) {
			tx.ObjectStore().Put(key, value)
		}); err != nil {
			b.Fatalf("Put failed: %v", err)
		}
	}
}

// All records in a single transaction
func benchmarkPutBatch(b *testing.B, conn db.Conn) {
	value := []byte("test-value")

	b.ResetTimer()
	if err := RunTx(b, conn, testCollection, db.ReadWrite, func(tx db.Tx) {
		s := tx.ObjectStore()
		for i := 0; i < b.N; i++ {
			s.Put(fmt.Sprintf("test-key-%d", i), value)
		}
	}); err != nil {
		b.Fatalf("PutBatch failed: %v", err)
	}
}

func benchmarkPutLargeValue(b *testing.B, conn db.Conn) {
	value := make([]byte, 1<<20)
	for i := range value {
		value[i] = byte(i)
	}
	b.SetBytes(int64(len(value)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("large-key-%d", i%16)
		if err := RunTx(b, conn, testCollection, db.ReadWrite, func(tx db.Tx) {
			tx.ObjectStore().Put(key, value)
		}); err != nil {
			b.Fatalf("Put failed: %v", err)
		}
	}
}

func benchmarkGet(b *testing.B, conn db.Conn) {
	keys := prefill(b, conn, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Get(b, conn, testCollection, keys[i%len(keys)]); err != nil {
			b.Fatalf("Get failed: %v", err)
		}
	}
}

// Full scan of 1000 records per iteration
func benchmarkCursor(b *testing.B, conn db.Conn) {
	prefill(b, conn, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		records, err := Scan(b, conn, testCollection)
		if err != nil {
			b.Fatalf("Scan failed: %v", err)
		}
		if len(records) != 1000 {
			b.Fatalf("Expected 1000 records, got %d", len(records))
		}
	}
}

// Benchmark for mixed usage patterns from parallel goroutines
func benchmarkMixedUsage(b *testing.B, conn db.Conn) {
	keys := prefill(b, conn, 10000)

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localCounter := 0

		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % len(keys)
			key := keys[idx]

			switch localCounter % 4 {
			case 0, 1: // Get
				_, _ = Get(b, conn, testCollection, key)
			case 2: // Put
				value := []byte(fmt.Sprintf("mixed-value-%d", localCounter))
				_ = Put(b, conn, testCollection, map[string][]byte{key: value})
			case 3: // Delete
				_ = RunTx(b, conn, testCollection, db.ReadWrite, func(tx db.Tx) {
					tx.ObjectStore().Delete(key)
				})
			}

			localCounter++
		}
	})
}
