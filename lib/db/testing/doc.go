// Package testing provides standardised tests and benchmarks for storage
// backends that are driven through db.NewEngine.
//
// The package contains:
//   - testing: A conformance suite for the engine contract (versioning, transactions, cursors, scheduling, close)
//   - benchmark: Performance tests for the common request patterns
//   - FaultyBackend: A backend wrapper that injects failures into cursor steps and commits
//   - helpers: Blocking wrappers (Await, RunTx, Put, Get, Scan) for tests of engine users
//
// Example usage:
//
//	// Creating a factory function for your backend
//	factory := func(t testing.TB) db.Backend {
//		return mybackend.New(t.TempDir())
//	}
//
//	// Running the standard test suite
//	dbtesting.RunEngineTests(t, "MyBackend", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunEngineBenchmarks(b, "MyBackend", factory)
package testing
