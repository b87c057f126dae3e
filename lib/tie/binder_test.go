package tie

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/bolt"
	"github.com/ValentinKolb/tKV/lib/db/instrument"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test doubles
// --------------------------------------------------------------------------

// mapNamespace is a minimal Namespace backed by a map
type mapNamespace struct {
	params   map[string]store.IStore
	reserved map[string]bool
}

func newMapNamespace(reserved ...string) *mapNamespace {
	ns := &mapNamespace{params: map[string]store.IStore{}, reserved: map[string]bool{}}
	for _, r := range reserved {
		ns.reserved[r] = true
	}
	return ns
}

func (n *mapNamespace) CreateSpecialHash(name string, s store.IStore) error {
	if n.reserved[name] {
		return fmt.Errorf("%s is read-only", name)
	}
	n.params[name] = s
	return nil
}

func (n *mapNamespace) RemoveSpecialHash(name string) error {
	if _, ok := n.params[name]; !ok {
		return fmt.Errorf("no such parameter: %s", name)
	}
	delete(n.params, name)
	return nil
}

// trackingDB records Close calls and can fail them
type trackingDB struct {
	db.KVDB
	closed   int
	closeErr error
}

func (t *trackingDB) Close() error {
	t.closed++
	if err := t.KVDB.Close(); err != nil {
		return err
	}
	return t.closeErr
}

func trackingFactory(closeErr error, opened *[]*trackingDB) db.Factory {
	return func(path string) (db.KVDB, error) {
		database, err := bolt.NewBoltDB(path, nil)
		if err != nil {
			return nil, err
		}
		tdb := &trackingDB{KVDB: database, closeErr: closeErr}
		*opened = append(*opened, tdb)
		return tdb, nil
	}
}

func tempPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.db")
}

// --------------------------------------------------------------------------
// Tie
// --------------------------------------------------------------------------

func TestTieConfigErrors(t *testing.T) {
	ns := newMapNamespace()
	b := NewBinder(ns)

	err := b.Tie("h", "", tempPath(t))
	assert.ErrorIs(t, err, ErrConfig)

	err = b.Tie("h", KindBolt, "")
	assert.ErrorIs(t, err, ErrConfig)

	err = b.Tie("h", "db/unknown", tempPath(t))
	assert.ErrorIs(t, err, ErrConfig)

	assert.Equal(t, StateUntied, b.State())
	assert.Nil(t, b.Binding())
	assert.Empty(t, ns.params)
}

func TestTieSuccess(t *testing.T) {
	for _, kind := range []Kind{KindBolt, KindPebble, KindSnapshot} {
		t.Run(string(kind), func(t *testing.T) {
			ns := newMapNamespace()
			b := NewBinder(ns)
			path := tempPath(t)

			require.NoError(t, b.Tie("h", kind, path))
			defer b.Close()

			assert.Equal(t, StateTied, b.State())
			binding := b.Binding()
			require.NotNil(t, binding)
			assert.Equal(t, "h", binding.Name)
			assert.Equal(t, kind, binding.Kind)
			assert.Equal(t, path, binding.Path)

			bridge, ok := ns.params["h"]
			require.True(t, ok)
			assert.Same(t, b.Store(), bridge)

			require.NoError(t, bridge.Set("k", []byte("v")))
			value, err := bridge.Get("k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), value)
		})
	}
}

func TestTieSingleton(t *testing.T) {
	ns := newMapNamespace()
	b := NewBinder(ns)
	path := tempPath(t)

	require.NoError(t, b.Tie("h", KindBolt, path))
	defer b.Close()

	err := b.Tie("other", KindPebble, tempPath(t))
	assert.ErrorIs(t, err, ErrAlreadyTied)

	err = b.Tie("h", KindBolt, path)
	assert.ErrorIs(t, err, ErrAlreadyTied)

	assert.Equal(t, StateTied, b.State())
	assert.Equal(t, "h", b.Binding().Name)
	assert.Len(t, ns.params, 1)
}

func TestTieEmptyName(t *testing.T) {
	b := NewBinder(newMapNamespace())

	err := b.Tie("", KindBolt, tempPath(t))
	assert.ErrorIs(t, err, ErrParamCreate)
	assert.Equal(t, StateUntied, b.State())
}

func TestTieStoreOpenError(t *testing.T) {
	ns := newMapNamespace()
	b := NewBinder(ns)
	path := filepath.Join(t.TempDir(), "missing-dir", "test.db")

	err := b.Tie("h", KindBolt, path)
	require.ErrorIs(t, err, ErrStoreOpen)

	var tieErr *Error
	require.True(t, errors.As(err, &tieErr))
	assert.Equal(t, path, tieErr.Path)
	assert.NotNil(t, errors.Unwrap(err))

	assert.Equal(t, StateUntied, b.State())
	assert.Empty(t, ns.params)
}

func TestTieParamCreateClosesStore(t *testing.T) {
	var opened []*trackingDB
	ns := newMapNamespace("readonly")
	b := NewBinder(ns, WithFactory(KindBolt, trackingFactory(nil, &opened)))
	path := tempPath(t)

	err := b.Tie("readonly", KindBolt, path)
	require.ErrorIs(t, err, ErrParamCreate)
	assert.Equal(t, StateUntied, b.State())

	require.Len(t, opened, 1)
	assert.Equal(t, 1, opened[0].closed, "the opened store must be closed again")

	// the file lock is released, so the same file can be tied right away
	require.NoError(t, b.Tie("h", KindBolt, path))
	require.NoError(t, b.Untie("h"))
}

func TestTieGDBMAlias(t *testing.T) {
	b := NewBinder(newMapNamespace())

	require.NoError(t, b.Tie("h", KindGDBM, tempPath(t)))
	defer b.Close()

	assert.Equal(t, KindBolt, b.Binding().Kind)
}

// --------------------------------------------------------------------------
// Untie
// --------------------------------------------------------------------------

func TestUntieNotTied(t *testing.T) {
	b := NewBinder(newMapNamespace())

	assert.ErrorIs(t, b.Untie("h"), ErrNotTied)
	assert.Equal(t, StateUntied, b.State())
}

func TestUntieNameMismatch(t *testing.T) {
	ns := newMapNamespace()
	b := NewBinder(ns)
	require.NoError(t, b.Tie("h", KindBolt, tempPath(t)))
	defer b.Close()

	assert.ErrorIs(t, b.Untie("other"), ErrNameMismatch)
	assert.Equal(t, StateTied, b.State())
	assert.Contains(t, ns.params, "h")
}

func TestUntieSuccess(t *testing.T) {
	ns := newMapNamespace()
	b := NewBinder(ns)
	require.NoError(t, b.Tie("h", KindBolt, tempPath(t)))
	bridge := b.Store()

	require.NoError(t, b.Untie("h"))

	assert.Equal(t, StateUntied, b.State())
	assert.Nil(t, b.Binding())
	assert.Nil(t, b.Store())
	assert.Empty(t, ns.params)

	// the old bridge talks to a closed engine
	_, err := bridge.Get("k")
	assert.True(t, store.HasCode(err, store.RetCInternalError))

	// tie is possible again
	require.NoError(t, b.Tie("h2", KindSnapshot, tempPath(t)))
	require.NoError(t, b.Close())
	assert.NoError(t, b.Close(), "Close when untied is a no-op")
}

func TestUntieCloseErrorStillCleansUp(t *testing.T) {
	var opened []*trackingDB
	ns := newMapNamespace()
	b := NewBinder(ns, WithFactory(KindBolt, trackingFactory(errors.New("fsync failed"), &opened)))
	path := tempPath(t)

	require.NoError(t, b.Tie("h", KindBolt, path))

	err := b.Untie("h")
	require.ErrorIs(t, err, ErrStoreClose)
	assert.Contains(t, err.Error(), "fsync failed")

	var tieErr *Error
	require.True(t, errors.As(err, &tieErr))
	assert.Equal(t, path, tieErr.Path)

	assert.Equal(t, StateUntied, b.State())
	assert.Empty(t, ns.params)
	assert.Equal(t, 1, opened[0].closed)
}

// --------------------------------------------------------------------------
// Persistence and scenario
// --------------------------------------------------------------------------

func TestDurabilityAcrossTies(t *testing.T) {
	for _, kind := range []Kind{KindBolt, KindPebble, KindSnapshot} {
		t.Run(string(kind), func(t *testing.T) {
			ns := newMapNamespace()
			b := NewBinder(ns)
			path := tempPath(t)

			require.NoError(t, b.Tie("h", kind, path))
			require.NoError(t, ns.params["h"].Set("alpha", []byte("1")))
			require.NoError(t, ns.params["h"].Set("beta", []byte("2")))
			require.NoError(t, ns.params["h"].Unset("beta"))
			require.NoError(t, b.Untie("h"))

			require.NoError(t, b.Tie("again", kind, path))
			defer b.Close()
			s := ns.params["again"]

			value, err := s.Get("alpha")
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), value)

			ok, err := s.Has("beta")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestAlphaBetaScenario(t *testing.T) {
	ns := newMapNamespace()
	b := NewBinder(ns)
	path := tempPath(t)

	require.NoError(t, b.Tie("h", KindBolt, path))
	h := ns.params["h"]

	require.NoError(t, h.Set("alpha", []byte("1")))
	require.NoError(t, h.Set("beta", []byte("2")))

	value, err := h.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "1", string(value))

	value, err = h.Get("gamma")
	require.NoError(t, err)
	assert.Equal(t, "", string(value))

	require.NoError(t, h.Unset("alpha"))

	var keys []string
	require.NoError(t, h.Scan(func(e store.Entry) bool {
		keys = append(keys, e.Key())
		return true
	}))
	assert.Equal(t, []string{"beta"}, keys)

	require.NoError(t, b.Untie("h"))
	require.NoError(t, b.Tie("h", KindBolt, path))
	defer b.Close()

	value, err = ns.params["h"].Get("beta")
	require.NoError(t, err)
	assert.Equal(t, "2", string(value))

	value, err = ns.params["h"].Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "", string(value))
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func TestInfoAndMetrics(t *testing.T) {
	b := NewBinder(newMapNamespace())

	_, err := b.Info()
	assert.ErrorIs(t, err, ErrNotTied)

	require.NoError(t, b.Tie("h", KindSnapshot, tempPath(t)))
	defer b.Close()
	require.NoError(t, b.Store().Set("k", []byte("v")))

	info, err := b.Info()
	require.NoError(t, err)
	assert.Equal(t, db.ImplSnapshot, info.DbType)

	meta, ok := info.Metadata.(instrument.Info)
	require.True(t, ok, "engine must be wrapped with timers")
	assert.Equal(t, int64(1), meta.Timers[instrument.OpStore].Count)

	assert.Contains(t, instrument.TimerNames(b.Timers()), instrument.OpStore)
	assert.NotNil(t, b.Counters())
}

func TestBindingIsCopy(t *testing.T) {
	b := NewBinder(newMapNamespace())
	require.NoError(t, b.Tie("h", KindBolt, tempPath(t)))
	defer b.Close()

	first := b.Binding()
	first.Name = "changed"
	assert.Equal(t, "h", b.Binding().Name)
	assert.Equal(t, first.ID, b.Binding().ID)
}

func TestErrorFormatting(t *testing.T) {
	err := newError(CodeStoreOpen, errors.New("permission denied"), "error opening database file %s", "/x")
	assert.Equal(t, "StoreOpenError: error opening database file /x: permission denied", err.Error())
	assert.Equal(t, "NotTiedError: NotTiedError", (&Error{Code: CodeNotTied}).Error())
	assert.False(t, errors.Is(err, ErrNotTied))
	assert.Equal(t, "Tied", StateTied.String())
	assert.Equal(t, "Untied", StateUntied.String())
}
