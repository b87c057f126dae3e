package host

import (
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db/engines/snapshot"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.IStore {
	database, err := snapshot.NewSnapshotDB(filepath.Join(t.TempDir(), "ns.snap"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return lstore.NewLocalStore(database, nil)
}

func TestNamespaceScalars(t *testing.T) {
	ns := NewNamespace()

	require.NoError(t, ns.SetScalar("a", "1"))
	p, ok := ns.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "1", p.Value)

	require.NoError(t, ns.SetScalar("a", "2"))
	p, _ = ns.Lookup("a")
	assert.Equal(t, "2", p.Value)

	assert.Error(t, ns.SetScalar("1bad", "x"))

	require.NoError(t, ns.Unset("a"))
	_, ok = ns.Lookup("a")
	assert.False(t, ok)
	assert.NoError(t, ns.Unset("never"))
}

func TestNamespaceReadOnly(t *testing.T) {
	ns := NewNamespace()
	value := "fixed"

	require.NoError(t, ns.SetReadOnly("r", &value))
	assert.Error(t, ns.SetScalar("r", "other"))
	assert.Error(t, ns.Unset("r"))
	assert.Error(t, ns.CreateSpecialHash("r", newTestStore(t)))

	require.NoError(t, ns.SetScalar("s", "v"))
	require.NoError(t, ns.SetReadOnly("s", nil))
	p, _ := ns.Lookup("s")
	assert.True(t, p.ReadOnly)
	assert.Equal(t, "v", p.Value)
}

func TestNamespaceSpecialHash(t *testing.T) {
	ns := NewNamespace()
	s := newTestStore(t)

	require.NoError(t, ns.SetScalar("h", "scalar"))
	require.NoError(t, ns.CreateSpecialHash("h", s), "a plain scalar is replaced")

	p, ok := ns.Lookup("h")
	require.True(t, ok)
	assert.Equal(t, ParamSpecialHash, p.Type)
	assert.Same(t, s, p.Hash)

	assert.Error(t, ns.CreateSpecialHash("h", s), "already a special hash")
	assert.Error(t, ns.SetScalar("h", "x"))
	assert.Error(t, ns.Unset("h"))
	assert.Error(t, ns.SetReadOnly("h", nil))
	assert.Error(t, ns.CreateSpecialHash("", s))

	require.NoError(t, ns.RemoveSpecialHash("h"))
	_, ok = ns.Lookup("h")
	assert.False(t, ok)
	assert.Error(t, ns.RemoveSpecialHash("h"))

	require.NoError(t, ns.SetScalar("x", "1"))
	assert.Error(t, ns.RemoveSpecialHash("x"))
}

func TestNamespaceNames(t *testing.T) {
	ns := NewNamespace()
	require.NoError(t, ns.SetScalar("b", ""))
	require.NoError(t, ns.SetScalar("a", ""))
	require.NoError(t, ns.CreateSpecialHash("c", newTestStore(t)))

	assert.Equal(t, []string{"a", "b", "c"}, ns.Names())
}
