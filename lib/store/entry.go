package store

import "fmt"

// Entry is a read-only view of one (key, value) pair handed out by Scan.
// It owns a private copy of the value and has no setter, so changing the
// mapping always goes through IStore.Set.
type Entry struct {
	key   string
	value []byte
}

// NewEntry builds a view over a copy of value.
func NewEntry(key string, value []byte) Entry {
	v := make([]byte, len(value))
	copy(v, value)
	return Entry{key: key, value: v}
}

// Key returns the entry's key
func (e Entry) Key() string {
	return e.key
}

// Value returns a copy of the entry's value
func (e Entry) Value() []byte {
	v := make([]byte, len(e.value))
	copy(v, e.value)
	return v
}

// Len returns the length of the value in bytes
func (e Entry) Len() int {
	return len(e.value)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s=%s", e.key, e.value)
}
