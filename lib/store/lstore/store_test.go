package lstore

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/bolt"
	"github.com/ValentinKolb/tKV/lib/db/engines/pebble"
	"github.com/ValentinKolb/tKV/lib/db/engines/snapshot"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var factories = map[string]db.Factory{
	"bolt":     bolt.Factory(nil),
	"pebble":   pebble.Factory(nil),
	"snapshot": snapshot.Factory(nil),
}

// forEachEngine runs fn against a fresh store on every engine
func forEachEngine(t *testing.T, fn func(t *testing.T, s store.IStore, database db.KVDB)) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			database, err := factory(filepath.Join(t.TempDir(), "store"))
			require.NoError(t, err)
			t.Cleanup(func() { database.Close() })
			fn(t, NewLocalStore(database, nil), database)
		})
	}
}

func TestGetMissingKeyReadsEmpty(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s store.IStore, database db.KVDB) {
		value, err := s.Get("never-set")
		require.NoError(t, err)
		assert.NotNil(t, value)
		assert.Len(t, value, 0)

		// reading must not create the key
		ok, err := database.Exists([]byte("never-set"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSetGetRoundTrip(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s store.IStore, _ db.KVDB) {
		require.NoError(t, s.Set("k", []byte("v1")))
		value, err := s.Get("k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), value)

		require.NoError(t, s.Set("k", []byte("v2")))
		value, err = s.Get("k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), value)

		binary := []byte{0x00, 0x01, 0xff}
		require.NoError(t, s.Set("bin", binary))
		value, err = s.Get("bin")
		require.NoError(t, err)
		assert.Equal(t, binary, value)
	})
}

func TestUnsetIdempotent(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s store.IStore, _ db.KVDB) {
		require.NoError(t, s.Set("k", []byte("v")))
		require.NoError(t, s.Unset("k"))
		require.NoError(t, s.Unset("k"))
		require.NoError(t, s.Unset("absent"))

		ok, err := s.Has("k")
		require.NoError(t, err)
		assert.False(t, ok)

		value, err := s.Get("k")
		require.NoError(t, err)
		assert.Empty(t, value)
	})
}

func TestHasDistinguishesEmptyValue(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s store.IStore, _ db.KVDB) {
		require.NoError(t, s.Set("empty", []byte{}))

		ok, err := s.Has("empty")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Has("absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestEmptyKeyRejected(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s store.IStore, _ db.KVDB) {
		err := s.Set("", []byte("v"))
		assert.True(t, store.HasCode(err, store.RetCInvalidKey), "got %v", err)

		_, err = s.Get("")
		assert.True(t, store.HasCode(err, store.RetCInvalidKey))

		assert.True(t, store.HasCode(s.Unset(""), store.RetCInvalidKey))

		_, err = s.Has("")
		assert.True(t, store.HasCode(err, store.RetCInvalidKey))
	})
}

func TestScanCompleteness(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s store.IStore, _ db.KVDB) {
		expected := make(map[string]string)
		for i := 0; i < 100; i++ {
			key := fmt.Sprintf("key-%03d", i)
			expected[key] = fmt.Sprintf("value-%d", i)
			require.NoError(t, s.Set(key, []byte(expected[key])))
		}

		seen := make(map[string]string)
		err := s.Scan(func(e store.Entry) bool {
			_, dup := seen[e.Key()]
			assert.False(t, dup, "key %s visited twice", e.Key())
			seen[e.Key()] = string(e.Value())
			assert.Equal(t, len(e.Value()), e.Len())
			return true
		})
		require.NoError(t, err)
		assert.Equal(t, expected, seen)
	})
}

func TestScanEarlyStop(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s store.IStore, _ db.KVDB) {
		for i := 0; i < 10; i++ {
			require.NoError(t, s.Set(fmt.Sprintf("k%d", i), []byte("v")))
		}

		visits := 0
		require.NoError(t, s.Scan(func(store.Entry) bool {
			visits++
			return visits < 3
		}))
		assert.Equal(t, 3, visits)
	})
}

func TestScanWithUnsetDuringWalk(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s store.IStore, _ db.KVDB) {
		for i := 0; i < 20; i++ {
			require.NoError(t, s.Set(fmt.Sprintf("k%02d", i), []byte("v")))
		}

		visits := 0
		require.NoError(t, s.Scan(func(e store.Entry) bool {
			visits++
			require.NoError(t, s.Unset(e.Key()))
			return true
		}))
		assert.Equal(t, 20, visits)

		empty := true
		require.NoError(t, s.Scan(func(store.Entry) bool {
			empty = false
			return false
		}))
		assert.True(t, empty)
	})
}

func TestScanEntriesDoNotAlias(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s store.IStore, _ db.KVDB) {
		require.NoError(t, s.Set("k", []byte("value")))

		require.NoError(t, s.Scan(func(e store.Entry) bool {
			v := e.Value()
			v[0] = 'X'
			assert.Equal(t, []byte("value"), e.Value())
			return true
		}))

		value, err := s.Get("k")
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), value)
	})
}

func TestGetDBInfo(t *testing.T) {
	forEachEngine(t, func(t *testing.T, s store.IStore, database db.KVDB) {
		info, err := s.GetDBInfo()
		require.NoError(t, err)
		assert.Equal(t, database.GetInfo().DbType, info.DbType)
	})
}

func TestMetrics(t *testing.T) {
	set := metrics.NewSet()
	database, err := snapshot.NewSnapshotDB(filepath.Join(t.TempDir(), "m.snap"), nil)
	require.NoError(t, err)
	defer database.Close()

	s := NewLocalStore(database, set)
	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Set("b", []byte("2")))
	_, _ = s.Get("a")
	_ = s.Set("", nil)

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, `tkv_store_ops_total{op="set"} 3`)
	assert.Contains(t, out, `tkv_store_ops_total{op="get"} 1`)
	assert.Contains(t, out, `tkv_store_errors_total{op="set"} 1`)
}

// --------------------------------------------------------------------------
// Engine failure and feature handling
// --------------------------------------------------------------------------

// fakeDB is a KVDB with configurable features that fails every call with err
type fakeDB struct {
	features db.Feature
	err      error
}

func (f *fakeDB) Store(_, _ []byte) error                 { return f.err }
func (f *fakeDB) Delete(_ []byte) error                   { return f.err }
func (f *fakeDB) Fetch(_ []byte) ([]byte, bool, error)    { return nil, false, f.err }
func (f *fakeDB) Exists(_ []byte) (bool, error)           { return false, f.err }
func (f *fakeDB) FirstKey() ([]byte, bool, error)         { return nil, false, f.err }
func (f *fakeDB) NextKey(_ []byte) ([]byte, bool, error)  { return nil, false, f.err }
func (f *fakeDB) SupportsFeature(feature db.Feature) bool { return f.features&feature == feature }
func (f *fakeDB) GetInfo() db.DatabaseInfo                { return db.DatabaseInfo{DbType: "fake"} }
func (f *fakeDB) Close() error                            { return nil }

func TestEngineErrorsSurface(t *testing.T) {
	all := db.FeatureFetch | db.FeatureExists | db.FeatureStore | db.FeatureDelete | db.FeatureScan
	s := NewLocalStore(&fakeDB{features: all, err: errors.New("disk on fire")}, nil)

	err := s.Set("k", []byte("v"))
	require.Error(t, err)
	assert.True(t, store.HasCode(err, store.RetCInternalError))
	assert.True(t, strings.Contains(err.Error(), "disk on fire"))

	_, err = s.Get("k")
	assert.True(t, store.HasCode(err, store.RetCInternalError))

	assert.True(t, store.HasCode(s.Unset("k"), store.RetCInternalError))

	_, err = s.Has("k")
	assert.True(t, store.HasCode(err, store.RetCInternalError))

	err = s.Scan(func(store.Entry) bool { return true })
	assert.True(t, store.HasCode(err, store.RetCInternalError))
}

func TestUnsupportedFeatures(t *testing.T) {
	s := NewLocalStore(&fakeDB{features: db.FeatureFetch}, nil)

	assert.True(t, store.HasCode(s.Set("k", nil), store.RetCUnsupportedOperation))
	assert.True(t, store.HasCode(s.Unset("k"), store.RetCUnsupportedOperation))

	_, err := s.Get("k")
	assert.True(t, store.HasCode(err, store.RetCUnsupportedOperation))

	_, err = s.Has("k")
	assert.True(t, store.HasCode(err, store.RetCUnsupportedOperation))

	err = s.Scan(func(store.Entry) bool { return true })
	assert.True(t, store.HasCode(err, store.RetCUnsupportedOperation))
}
