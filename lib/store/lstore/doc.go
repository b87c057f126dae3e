// Package lstore implements the store.IStore bridge directly on top of one
// db.KVDB.
//
// Key Features:
//   - Reads check existence first, a missing key reads as an empty value and is never created
//   - Feature detection: every method checks SupportsFeature before touching the engine
//     and returns RetCUnsupportedOperation instead of failing with undefined behavior
//   - Scans use the engine's FirstKey / NextKey cursor and fetch each value when its
//     key is visited, so entries may be deleted while a scan is running
//   - Empty keys are rejected with RetCInvalidKey
//   - Counters tkv_store_ops_total{op="..."} and tkv_store_errors_total{op="..."} are
//     kept in a VictoriaMetrics set shared with the caller
//
// Every failure is logged on the "store" logger and returned as *store.Error.
//
// Usage Example:
//
//	database, _ := bolt.NewBoltDB("data.db", nil)
//	defer database.Close()
//
//	s := lstore.NewLocalStore(database, nil)
//	_ = s.Set("alpha", []byte("1"))
//	value, _ := s.Get("alpha")
//
// The store is not safe for concurrent use, just like the engines it wraps.
package lstore
