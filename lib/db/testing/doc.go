// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: a conformance suite for the KVDB contract (replace semantics,
//     absent deletes, empty values, cursor walks with deletion, durability across reopen)
//   - benchmark: sequential throughput tests for the common operations
//
// Every sub test opens its own database in a fresh t.TempDir().
//
// Example usage:
//
//	// Running the standard test suite
//	testing.RunKVDBTests(t, "MyDatabase", mydb.Factory(nil))
//
//	// Running performance benchmarks
//	testing.RunKVDBBenchmarks(b, "MyDatabase", mydb.Factory(nil))
package testing
