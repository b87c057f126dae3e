package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	dbtesting "github.com/ValentinKolb/tKV/lib/db/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "SnapshotDB", Factory(nil))
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "SnapshotDB", Factory(nil))
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.snap")

	database, err := NewSnapshotDB(path, nil)
	require.NoError(t, err)
	defer database.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.snap")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err := NewSnapshotDB(path, nil)
	assert.Error(t, err)
}

func TestOpenMissingDirectoryFails(t *testing.T) {
	_, err := NewSnapshotDB(filepath.Join(t.TempDir(), "missing", "x.snap"), nil)
	assert.Error(t, err)
}

func TestFailedPersistRollsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ro.snap")

	database, err := NewSnapshotDB(path, nil)
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.Store([]byte("a"), []byte("1")))

	// the atomic rewrite needs a temp file next to the snapshot
	require.NoError(t, os.Chmod(dir, 0o500))
	defer os.Chmod(dir, 0o700)
	if f, err := os.Create(filepath.Join(dir, "writable")); err == nil {
		f.Close()
		t.Skip("directory permissions are not enforced (running as root?)")
	}

	assert.Error(t, database.Store([]byte("b"), []byte("2")))
	assert.Error(t, database.Delete([]byte("a")))

	ok, err := database.Exists([]byte("b"))
	require.NoError(t, err)
	assert.False(t, ok, "failed store must not be visible")

	value, ok, err := database.Fetch([]byte("a"))
	require.NoError(t, err)
	assert.True(t, ok, "failed delete must not be visible")
	assert.Equal(t, []byte("1"), value)
}

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.snap")

	first, err := NewSnapshotDB(path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Store([]byte("k"), []byte("first")))

	_, err = NewSnapshotDB(path, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked), err.Error())

	require.NoError(t, first.Close())

	second, err := NewSnapshotDB(path, nil)
	require.NoError(t, err)
	defer second.Close()
	value, ok, err := second.Fetch([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("first"), value)
}

func TestFailedOpenReleasesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.snap")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err := NewSnapshotDB(path, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLocked))

	require.NoError(t, os.Remove(path))
	database, err := NewSnapshotDB(path, nil)
	require.NoError(t, err, "a failed open must not keep the lock")
	assert.NoError(t, database.Close())
}
