package testing

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementation.
// Engines are not required to be safe for concurrent use, so every benchmark is sequential.
func RunKVDBBenchmarks(b *testing.B, name string, factory db.Factory) {

	b.Run("Store", func(b *testing.B) {
		benchmarkStore(b, open(b, factory))
	})

	b.Run("StoreExisting", func(b *testing.B) {
		benchmarkStoreExisting(b, open(b, factory))
	})

	b.Run("Fetch", func(b *testing.B) {
		benchmarkFetch(b, open(b, factory))
	})

	b.Run("Exists(not)", func(b *testing.B) {
		benchmarkExistsNot(b, open(b, factory))
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, open(b, factory))
	})

	b.Run("Walk", func(b *testing.B) {
		benchmarkWalk(b, open(b, factory))
	})

	b.Run("Reopen", func(b *testing.B) {
		benchmarkReopen(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// populate stores n keys and returns them
func populate(b *testing.B, database db.KVDB, n int) [][]byte {
	keys := make([][]byte, n)
	for i := 0; i < n; i++ {
		keys[i] = []byte(fmt.Sprintf("test-key-%d", i))
		if err := database.Store(keys[i], []byte(fmt.Sprintf("test-value-%d", i))); err != nil {
			b.Fatalf("populate: %v", err)
		}
	}
	return keys
}

// Benchmark for Store operation
func benchmarkStore(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureStore)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := []byte(fmt.Sprintf("test-key-%d", i))
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Store(key, value)
	}
}

// Benchmark for Store operation with existing keys
func benchmarkStoreExisting(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureStore)

	keys := populate(b, database, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Store(keys[i%len(keys)], []byte(fmt.Sprintf("test-value-%d", i)))
	}
}

// Benchmark for Fetch operation
func benchmarkFetch(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureStore|db.FeatureFetch)

	keys := populate(b, database, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Fetch(keys[i%len(keys)])
	}
}

// Benchmark for Exists operation (with key miss)
func benchmarkExistsNot(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureExists)
	key := []byte("test-key")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Exists(key)
	}
}

// Benchmark for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureStore|db.FeatureDelete)

	numKeys := 1000
	if b.N < numKeys {
		numKeys = b.N
	}
	keys := populate(b, database, numKeys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Delete(keys[i%numKeys])
	}
}

// Benchmark for a full FirstKey / NextKey walk
func benchmarkWalk(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureStore|db.FeatureScan)

	populate(b, database, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key, ok, err := database.FirstKey()
		for ; ok && err == nil; key, ok, err = database.NextKey(key) {
		}
	}
}

// Benchmark for closing and reopening a populated database
func benchmarkReopen(b *testing.B, factory db.Factory) {
	path := filepath.Join(b.TempDir(), "bench.db")

	database, err := factory(path)
	if err != nil {
		b.Fatalf("open: %v", err)
	}
	requireFeature(b, database, db.FeatureStore)
	populate(b, database, 1000)
	database.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database, err := factory(path)
		if err != nil {
			b.Fatalf("reopen: %v", err)
		}
		database.Close()
	}
}
