package testing

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
)

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
// factory is called with a fresh path inside t.TempDir() for every sub test.
func RunKVDBTests(t *testing.T, name string, factory db.Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Store&Fetch", func(t *testing.T) {
			testStoreFetch(t, open(t, factory))
		})

		t.Run("Exists", func(t *testing.T) {
			testExists(t, open(t, factory))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t, factory))
		})

		t.Run("EmptyValue", func(t *testing.T) {
			testEmptyValue(t, open(t, factory))
		})

		t.Run("EmptyKey", func(t *testing.T) {
			testEmptyKey(t, open(t, factory))
		})

		t.Run("BinaryData", func(t *testing.T) {
			testBinaryData(t, open(t, factory))
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, open(t, factory))
		})

		t.Run("ScanWithDeletion", func(t *testing.T) {
			testScanWithDeletion(t, open(t, factory))
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, factory)
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, open(t, factory))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, open(t, factory))
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, open(t, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates a database in a fresh temp dir and fails the test on error
func open(t testing.TB, factory db.Factory) db.KVDB {
	t.Helper()
	database, err := factory(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	return database
}

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// fetch fails the test on error and returns value and existence
func fetch(t testing.TB, database db.KVDB, key string) ([]byte, bool) {
	t.Helper()
	value, ok, err := database.Fetch([]byte(key))
	if err != nil {
		t.Fatalf("Unexpected error during Fetch(%q): %v", key, err)
	}
	return value, ok
}

func store(t testing.TB, database db.KVDB, key string, value []byte) {
	t.Helper()
	if err := database.Store([]byte(key), value); err != nil {
		t.Fatalf("Unexpected error during Store(%q): %v", key, err)
	}
}

func del(t testing.TB, database db.KVDB, key string) {
	t.Helper()
	if err := database.Delete([]byte(key)); err != nil {
		t.Fatalf("Unexpected error during Delete(%q): %v", key, err)
	}
}

// walk collects all keys with the FirstKey / NextKey protocol.
// Every key visited twice is reported as an error.
func walk(t testing.TB, database db.KVDB) map[string]int {
	t.Helper()
	seen := make(map[string]int)

	key, ok, err := database.FirstKey()
	for ; ok && err == nil; key, ok, err = database.NextKey(key) {
		seen[string(key)]++
		if seen[string(key)] > 1 {
			t.Errorf("Key %q visited more than once", key)
			break
		}
	}
	if err != nil {
		t.Fatalf("Unexpected error during walk: %v", err)
	}
	return seen
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testStoreFetch(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStore|db.FeatureFetch)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	store(t, database, testKey, testValue1)

	result, exists := fetch(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Store", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	store(t, database, testKey, testValue2)

	result, exists = fetch(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after replace", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected replaced value %s, got %s", testValue2, result)
	}

	_, exists = fetch(t, database, "nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := fetch(t, database, testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := fetch(t, database, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Fetch should return a copy, not a reference to the stored value")
	}

	input := []byte("mutable-input")
	store(t, database, "input-key", input)
	input[0] = 'X'
	result, _ = fetch(t, database, "input-key")
	if !bytes.Equal(result, []byte("mutable-input")) {
		t.Errorf("Store must not keep a reference to the caller's slice, got %s", result)
	}
}

func testExists(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStore|db.FeatureExists|db.FeatureDelete)

	testKey := "exists-test-key"

	if ok, err := database.Exists([]byte(testKey)); err != nil || ok {
		t.Errorf("Expected Exists to return false for nonexistent key (err=%v)", err)
	}

	store(t, database, testKey, []byte("exists-test-value"))

	if ok, err := database.Exists([]byte(testKey)); err != nil || !ok {
		t.Errorf("Expected Exists to return true after Store (err=%v)", err)
	}

	// a prefix of an existing key is a different key
	if ok, _ := database.Exists([]byte("exists-test")); ok {
		t.Errorf("Expected Exists to return false for a prefix of an existing key")
	}

	del(t, database, testKey)

	if ok, err := database.Exists([]byte(testKey)); err != nil || ok {
		t.Errorf("Expected Exists to return false after Delete (err=%v)", err)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStore|db.FeatureFetch|db.FeatureDelete)

	testKey := "delete-test-key"
	store(t, database, testKey, []byte("delete-test-value"))
	store(t, database, "other-key", []byte("other-value"))

	del(t, database, testKey)

	if _, exists := fetch(t, database, testKey); exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}
	if _, exists := fetch(t, database, "other-key"); !exists {
		t.Errorf("Delete removed an unrelated key")
	}

	// deleting again and deleting a key that never existed are no-ops
	del(t, database, testKey)
	del(t, database, "nonexistent-key")

	if _, exists := fetch(t, database, "nonexistent-key"); exists {
		t.Errorf("Delete of an absent key must not create it")
	}
}

func testEmptyValue(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStore|db.FeatureFetch|db.FeatureExists)

	store(t, database, "empty-value-key", []byte{})
	result, exists := fetch(t, database, "empty-value-key")
	if !exists {
		t.Errorf("Key for empty value not found after Store")
	} else if len(result) != 0 {
		t.Errorf("Expected empty value, got %v", result)
	}

	store(t, database, "nil-value-key", nil)
	if ok, _ := database.Exists([]byte("nil-value-key")); !ok {
		t.Errorf("Key for nil value not found after Store")
	}
}

func testEmptyKey(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStore|db.FeatureFetch)

	err := database.Store([]byte{}, []byte("value for empty key"))
	if !errors.Is(err, db.ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey for empty key, got %v", err)
	}

	if _, exists := fetch(t, database, ""); exists {
		t.Errorf("Empty key must never be found")
	}
}

func testBinaryData(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStore|db.FeatureFetch)

	binaryKey := string([]byte{0x00, 0xff, 0x00, 'k'})
	binaryValue := []byte{0x00, 0x01, 0x00, 0xfe, 0xff}

	store(t, database, binaryKey, binaryValue)
	result, exists := fetch(t, database, binaryKey)
	if !exists || !bytes.Equal(result, binaryValue) {
		t.Errorf("Binary round trip failed: exists=%v value=%v", exists, result)
	}

	largeKey := string(bytes.Repeat([]byte("k"), 500))
	store(t, database, largeKey, []byte("value for large key"))
	if _, exists := fetch(t, database, largeKey); !exists {
		t.Errorf("Large key not found after Store")
	}

	largeValue := make([]byte, 1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	store(t, database, "large-value-key", largeValue)

	result, exists = fetch(t, database, "large-value-key")
	if !exists {
		t.Errorf("Key for large value not found after Store")
	} else if !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch: got %d bytes, expected %d", len(result), len(largeValue))
	}
}

func testScan(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStore|db.FeatureDelete|db.FeatureScan)

	if _, ok, err := database.FirstKey(); err != nil || ok {
		t.Fatalf("Expected FirstKey on an empty database to return ok=false (err=%v)", err)
	}

	numKeys := 200
	for i := 0; i < numKeys; i++ {
		store(t, database, fmt.Sprintf("scan-key-%d", i), []byte(fmt.Sprintf("scan-value-%d", i)))
	}
	for i := 0; i < numKeys; i += 4 {
		del(t, database, fmt.Sprintf("scan-key-%d", i))
	}

	seen := walk(t, database)

	expected := numKeys - numKeys/4
	if len(seen) != expected {
		t.Errorf("Expected %d keys during walk, got %d", expected, len(seen))
	}
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("scan-key-%d", i)
		_, visited := seen[key]
		if i%4 == 0 && visited {
			t.Errorf("Deleted key %s was visited", key)
		}
		if i%4 != 0 && !visited {
			t.Errorf("Key %s was not visited", key)
		}
	}
}

func testScanWithDeletion(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStore|db.FeatureDelete|db.FeatureScan)

	numKeys := 50
	for i := 0; i < numKeys; i++ {
		store(t, database, fmt.Sprintf("k-%02d", i), []byte("v"))
	}

	// delete every key while standing on it, the walk must still reach all keys
	visited := 0
	key, ok, err := database.FirstKey()
	for ; ok && err == nil; key, ok, err = database.NextKey(key) {
		visited++
		del(t, database, string(key))
		if visited > numKeys {
			t.Fatalf("Walk did not terminate")
		}
	}
	if err != nil {
		t.Fatalf("Unexpected error during walk: %v", err)
	}
	if visited != numKeys {
		t.Errorf("Expected to visit %d keys while deleting, visited %d", numKeys, visited)
	}
	if len(walk(t, database)) != 0 {
		t.Errorf("Expected an empty database after deleting every key")
	}
}

func testReopen(t *testing.T, factory db.Factory) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	database, err := factory(path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	requireFeature(t, database, db.FeatureStore|db.FeatureFetch|db.FeatureSync)

	numEntries := 100
	for i := 0; i < numEntries; i++ {
		store(t, database, fmt.Sprintf("reopen-key-%d", i), []byte(fmt.Sprintf("reopen-value-%d", i)))
	}
	del(t, database, "reopen-key-0")
	store(t, database, "reopen-key-1", []byte("replaced"))

	if err := database.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}

	database2, err := factory(path)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer database2.Close()

	if _, exists := fetch(t, database2, "reopen-key-0"); exists {
		t.Errorf("Deleted key survived reopen")
	}
	if value, _ := fetch(t, database2, "reopen-key-1"); !bytes.Equal(value, []byte("replaced")) {
		t.Errorf("Expected replaced value after reopen, got %s", value)
	}
	for i := 2; i < numEntries; i++ {
		key := fmt.Sprintf("reopen-key-%d", i)
		expected := []byte(fmt.Sprintf("reopen-value-%d", i))
		value, exists := fetch(t, database2, key)
		if !exists {
			t.Errorf("Key %s not found after reopen", key)
			continue
		}
		if !bytes.Equal(value, expected) {
			t.Errorf("Value mismatch for key %s after reopen: expected %s, got %s", key, expected, value)
		}
	}
}

func testClosed(t *testing.T, database db.KVDB) {
	store(t, database, "key", []byte("value"))

	if err := database.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}

	if _, _, err := database.Fetch([]byte("key")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Fetch, got %v", err)
	}
	if err := database.Store([]byte("key"), []byte("value")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Store, got %v", err)
	}
	if err := database.Delete([]byte("key")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Delete, got %v", err)
	}
	if _, _, err := database.FirstKey(); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from FirstKey, got %v", err)
	}
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	store(t, database, "info-key", []byte("info-value"))

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected DbType to be set")
	}
	if info.Path == "" {
		t.Errorf("Expected Path to be set")
	}
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected at least one supported feature")
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Feature %s listed in info but not supported", f)
		}
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureStore|db.FeatureFetch|db.FeatureDelete|db.FeatureScan)

	// model of the expected state
	model := make(map[string][]byte)

	numOperations := 2_000
	for i := 0; i < numOperations; i++ {
		var key string
		if i%5 == 0 {
			key = fmt.Sprintf("hot-key-%d", i%50)
		} else {
			key = fmt.Sprintf("key-%d", i%400)
		}

		switch i % 10 {
		case 0, 1, 2, 3, 4, 5, 6:
			valueSize := 64
			if i%10 == 0 {
				valueSize = 1024
			}
			value := make([]byte, valueSize)
			for j := range value {
				value[j] = byte((i + j) % 256)
			}
			store(t, database, key, value)
			model[key] = value
		case 7, 8:
			value, exists := fetch(t, database, key)
			expected, inModel := model[key]
			if exists != inModel {
				t.Fatalf("Existence mismatch for %s at op %d: db=%v model=%v", key, i, exists, inModel)
			}
			if exists && !bytes.Equal(value, expected) {
				t.Fatalf("Value mismatch for %s at op %d", key, i)
			}
		case 9:
			del(t, database, key)
			delete(model, key)
		}
	}

	seen := walk(t, database)
	if len(seen) != len(model) {
		t.Errorf("Walk visited %d keys, model has %d", len(seen), len(model))
	}
	for key, expected := range model {
		if seen[key] != 1 {
			t.Errorf("Key %s visited %d times", key, seen[key])
		}
		value, _ := fetch(t, database, key)
		if !bytes.Equal(value, expected) {
			t.Errorf("Value mismatch for key %s after realistic usage", key)
		}
	}
}
