package internal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// File format
// --------------------------------------------------------------------------

const (
	MagicNum = "TKVSNAP\x00" // File format identifier
	Version  = 1             // File format version
)

// --------------------------------------------------------------------------
// Entry Type (key-value pair)
// --------------------------------------------------------------------------

// Entry stores one key-value pair of the index
type Entry struct {
	Key   []byte
	Value []byte
}

// ByKey orders entries by raw key bytes
func ByKey(a, b Entry) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// Save writes count entries produced by each to w.
// each must call yield exactly count times.
func Save(w io.Writer, count int, each func(yield func(Entry) bool)) error {
	bw := bufio.NewWriter(w)

	// Write file header
	if _, err := bw.WriteString(MagicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(Version)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(count)); err != nil {
		return err
	}

	// Write entries
	var err error
	written := 0
	each(func(e Entry) bool {
		if err = writeBytes(bw, e.Key); err != nil {
			return false
		}
		if err = writeBytes(bw, e.Value); err != nil {
			return false
		}
		written++
		return true
	})
	if err != nil {
		return err
	}
	if written != count {
		return fmt.Errorf("snapshot count mismatch: header %d, wrote %d", count, written)
	}

	return bw.Flush()
}

// Load reads a snapshot from r and calls add for each entry
func Load(r io.Reader, add func(Entry)) error {
	br := bufio.NewReader(r)

	// Read and verify magic number
	magicBytes := make([]byte, len(MagicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if string(magicBytes) != MagicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != Version {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, Version)
	}

	// Read entry count
	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	for i := uint64(0); i < count; i++ {
		key, err := readBytes(br)
		if err != nil {
			return fmt.Errorf("read key %d: %w", i, err)
		}
		value, err := readBytes(br)
		if err != nil {
			return fmt.Errorf("read value %d: %w", i, err)
		}
		add(Entry{Key: key, Value: value})
	}

	return nil
}

// writeBytes writes a uint32 length prefix followed by b
func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readBytes reads a uint32 length prefix and the following bytes.
// The buffer only grows with the bytes actually read, a corrupt prefix
// cannot force a large allocation.
func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}
