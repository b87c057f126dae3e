package internal

import (
	"bytes"
	"encoding/binary"
	"io"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	entries := []Entry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte{0x00, 0xff}, Value: []byte{}},
		{Key: []byte("long"), Value: bytes.Repeat([]byte("x"), 4096)},
	}

	var buf bytes.Buffer
	err := Save(&buf, len(entries), func(yield func(Entry) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	})
	require.NoError(t, err)

	var loaded []Entry
	require.NoError(t, Load(&buf, func(e Entry) { loaded = append(loaded, e) }))

	require.Len(t, loaded, len(entries))
	for i := range entries {
		assert.Equal(t, entries[i].Key, loaded[i].Key)
		assert.Equal(t, len(entries[i].Value), len(loaded[i].Value))
	}
}

func TestSaveCountMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := Save(&buf, 2, func(yield func(Entry) bool) {
		yield(Entry{Key: []byte("only-one")})
	})
	assert.Error(t, err)
}

func TestLoadRejectsBadInput(t *testing.T) {
	assert.Error(t, Load(bytes.NewReader(nil), func(Entry) {}), "empty input")
	assert.Error(t, Load(bytes.NewReader([]byte("NOTASNAPSHOT")), func(Entry) {}), "wrong magic")

	bad := append([]byte(MagicNum), 99)
	assert.Error(t, Load(bytes.NewReader(bad), func(Entry) {}), "wrong version")

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, 1, func(yield func(Entry) bool) {
		yield(Entry{Key: []byte("k"), Value: []byte("value")})
	}))
	truncated := buf.Bytes()[:buf.Len()-2]
	assert.Error(t, Load(bytes.NewReader(truncated), func(Entry) {}), "truncated entry")
}

func TestLoadOversizedLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(MagicNum)
	buf.WriteByte(Version)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(1)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFF0)))
	buf.WriteString("abc")

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	err := Load(bytes.NewReader(buf.Bytes()), func(Entry) {})
	runtime.ReadMemStats(&after)

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20), "load allocated for the claimed length")
}

func TestLoadEmptyValueNotNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, 1, func(yield func(Entry) bool) {
		yield(Entry{Key: []byte("k"), Value: []byte{}})
	}))

	var loaded []Entry
	require.NoError(t, Load(&buf, func(e Entry) { loaded = append(loaded, e) }))
	require.Len(t, loaded, 1)
	assert.NotNil(t, loaded[0].Value)
	assert.Empty(t, loaded[0].Value)
}

func TestByKey(t *testing.T) {
	assert.True(t, ByKey(Entry{Key: []byte("a")}, Entry{Key: []byte("b")}))
	assert.False(t, ByKey(Entry{Key: []byte("b")}, Entry{Key: []byte("a")}))
	assert.False(t, ByKey(Entry{Key: []byte("a")}, Entry{Key: []byte("a")}))
}
