package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/snapshot/internal"
	"github.com/ValentinKolb/tKV/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/tidwall/btree"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultFileMode os.FileMode = 0666
	bTreeDegree                 = 32
)

var log = logger.GetLogger("db")

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// snapshotImpl keeps an ordered in-memory index and rewrites the whole
// snapshot file after every mutation. The file is the system of record, the
// index is only rebuilt from it on open.
type snapshotImpl struct {
	path   string
	perm   os.FileMode
	index  *btree.BTreeG[internal.Entry]
	lock   *os.File
	closed bool
}

// DBOptions configures the snapshot engine
type DBOptions struct {
	FileMode os.FileMode // permission bits of the snapshot file (0 = 0666)
}

// DefaultOptions returns the default snapshot options
func DefaultOptions() *DBOptions {
	return &DBOptions{FileMode: defaultFileMode}
}

// NewSnapshotDB opens the snapshot file at path. A missing file is created
// as an empty snapshot so that the file exists on disk after a successful open.
// The handle holds an exclusive lock on path+LockSuffix until Close, a second
// open of the same snapshot fails with ErrLocked.
func NewSnapshotDB(path string, opts *DBOptions) (db.KVDB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.FileMode == 0 {
		opts.FileMode = defaultFileMode
	}

	s := &snapshotImpl{
		path: path,
		perm: opts.FileMode,
		index: btree.NewBTreeGOptions[internal.Entry](internal.ByKey, btree.Options{
			Degree:  bTreeDegree,
			NoLocks: true,
		}),
	}

	lock, err := acquireLock(path, opts.FileMode)
	if err != nil {
		return nil, fmt.Errorf("lock snapshot %s: %w", path, err)
	}
	s.lock = lock

	if err := s.load(); err != nil {
		if uerr := releaseLock(lock); uerr != nil {
			log.Warningf("release lock of %s: %v", path, uerr)
		}
		return nil, err
	}
	return s, nil
}

// load fills the index from the snapshot file, creating the file if missing
func (s *snapshotImpl) load() error {
	f, err := os.Open(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := s.persist(); err != nil {
			return fmt.Errorf("create snapshot %s: %w", s.path, err)
		}
		log.Debugf("created snapshot file %s", s.path)
	case err != nil:
		return fmt.Errorf("open snapshot %s: %w", s.path, err)
	default:
		defer f.Close()
		err := internal.Load(f, func(e internal.Entry) {
			s.index.Set(e)
		})
		if err != nil {
			return fmt.Errorf("load snapshot %s: %w", s.path, err)
		}
		log.Debugf("loaded %d entries from snapshot file %s", s.index.Len(), s.path)
	}
	return nil
}

// Factory returns a db.Factory that opens snapshot files with opts.
func Factory(opts *DBOptions) db.Factory {
	return func(path string) (db.KVDB, error) {
		return NewSnapshotDB(path, opts)
	}
}

// persist rewrites the snapshot file from the current index
func (s *snapshotImpl) persist() error {
	return util.WriteFileAtomic(s.path, s.perm, func(w io.Writer) error {
		return internal.Save(w, s.index.Len(), func(yield func(internal.Entry) bool) {
			s.index.Scan(yield)
		})
	})
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Store inserts or replaces an entry and rewrites the snapshot.
// If the rewrite fails the index is rolled back so memory never runs ahead of the file.
func (s *snapshotImpl) Store(key, value []byte) error {
	if s.closed {
		return db.ErrClosed
	}
	if len(key) == 0 {
		return db.ErrEmptyKey
	}

	// Copy key and value to prevent memory corruption
	entry := internal.Entry{
		Key:   bytes.Clone(key),
		Value: make([]byte, len(value)),
	}
	copy(entry.Value, value)

	old, replaced := s.index.Set(entry)
	if err := s.persist(); err != nil {
		if replaced {
			s.index.Set(old)
		} else {
			s.index.Delete(entry)
		}
		return err
	}
	return nil
}

// Delete removes an entry. Deleting an absent key does not touch the file.
func (s *snapshotImpl) Delete(key []byte) error {
	if s.closed {
		return db.ErrClosed
	}

	old, deleted := s.index.Delete(internal.Entry{Key: key})
	if !deleted {
		return nil
	}
	if err := s.persist(); err != nil {
		s.index.Set(old)
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

func (s *snapshotImpl) Fetch(key []byte) ([]byte, bool, error) {
	if s.closed {
		return nil, false, db.ErrClosed
	}
	e, ok := s.index.Get(internal.Entry{Key: key})
	if !ok {
		return nil, false, nil
	}
	value := make([]byte, len(e.Value))
	copy(value, e.Value)
	return value, true, nil
}

func (s *snapshotImpl) Exists(key []byte) (bool, error) {
	if s.closed {
		return false, db.ErrClosed
	}
	_, ok := s.index.Get(internal.Entry{Key: key})
	return ok, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Cursor Operations
// --------------------------------------------------------------------------

func (s *snapshotImpl) FirstKey() ([]byte, bool, error) {
	if s.closed {
		return nil, false, db.ErrClosed
	}
	e, ok := s.index.Min()
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(e.Key), true, nil
}

func (s *snapshotImpl) NextKey(key []byte) ([]byte, bool, error) {
	if s.closed {
		return nil, false, db.ErrClosed
	}

	var next []byte
	s.index.Ascend(internal.Entry{Key: key}, func(e internal.Entry) bool {
		if bytes.Equal(e.Key, key) {
			return true // skip the pivot itself
		}
		next = bytes.Clone(e.Key)
		return false
	})
	return next, next != nil, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the snapshot
func (s *snapshotImpl) GetInfo() db.DatabaseInfo {
	meta := &struct {
		KeyCount   int              `json:"key_count"`
		ValueSizes util.SizeSummary `json:"value_sizes"`
		Version    int              `json:"format_version"`
	}{
		Version: internal.Version,
	}

	if !s.closed {
		histogram := util.NewSizeHistogram()
		s.index.Scan(func(e internal.Entry) bool {
			histogram.AddSample(len(e.Value))
			return true
		})
		meta.KeyCount = s.index.Len()
		meta.ValueSizes = histogram.Summary()
	}

	return db.DatabaseInfo{
		Path:              s.path,
		SizeBytes:         util.DiskUsage(s.path),
		DbType:            db.ImplSnapshot,
		SupportedFeatures: db.FeatureList(supportedFeatures),
		Metadata:          meta,
	}
}

const supportedFeatures = db.FeatureFetch |
	db.FeatureExists |
	db.FeatureStore |
	db.FeatureDelete |
	db.FeatureScan |
	db.FeatureSync

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (s *snapshotImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// Close drops the in-memory index and releases the lock. The file is already up to date.
func (s *snapshotImpl) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.index.Clear()
	if err := releaseLock(s.lock); err != nil {
		return fmt.Errorf("release lock of %s: %w", s.path, err)
	}
	return nil
}
