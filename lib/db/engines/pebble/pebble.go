package pebble

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/util"
	"github.com/cockroachdb/pebble"
	"github.com/lni/dragonboat/v4/logger"
)

const infoSamples = 100

var log = logger.GetLogger("db")

// pebbleImpl stores entries in a pebble LSM directory.
// Every write uses pebble.Sync, which fsyncs the WAL before returning.
type pebbleImpl struct {
	path   string
	handle *pebble.DB
	closed bool
}

// pebbleLogger forwards pebble's internal log lines to the db logger
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Panicf(format, args...)
}

// NewPebbleDB opens the pebble directory at path, creating it if it does not exist.
func NewPebbleDB(path string, opts *pebble.Options) (db.KVDB, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	if opts.Logger == nil {
		opts.Logger = pebbleLogger{}
	}
	opts.ErrorIfExists = false
	opts.ReadOnly = false

	handle, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble dir %s: %w", path, err)
	}

	log.Debugf("opened pebble dir %s", path)
	return &pebbleImpl{path: path, handle: handle}, nil
}

// Factory returns a db.Factory that opens pebble directories with opts.
func Factory(opts *pebble.Options) db.Factory {
	return func(path string) (db.KVDB, error) {
		var o *pebble.Options
		if opts != nil {
			// pebble mutates the options in EnsureDefaults, never share them between opens
			c := *opts
			o = &c
		}
		return NewPebbleDB(path, o)
	}
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

func (p *pebbleImpl) Store(key, value []byte) error {
	if p.closed {
		return db.ErrClosed
	}
	if len(key) == 0 {
		return db.ErrEmptyKey
	}
	return p.handle.Set(key, value, pebble.Sync)
}

func (p *pebbleImpl) Delete(key []byte) error {
	if p.closed {
		return db.ErrClosed
	}
	if len(key) == 0 {
		return nil
	}
	return p.handle.Delete(key, pebble.Sync)
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

func (p *pebbleImpl) Fetch(key []byte) ([]byte, bool, error) {
	if p.closed {
		return nil, false, db.ErrClosed
	}
	if len(key) == 0 {
		return nil, false, nil
	}

	v, closer, err := p.handle.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	// v is only valid until closer is closed -> copy
	value := make([]byte, len(v))
	copy(value, v)
	return value, true, nil
}

func (p *pebbleImpl) Exists(key []byte) (bool, error) {
	_, ok, err := p.Fetch(key)
	return ok, err
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Cursor Operations
// --------------------------------------------------------------------------

func (p *pebbleImpl) FirstKey() ([]byte, bool, error) {
	if p.closed {
		return nil, false, db.ErrClosed
	}
	iter, err := p.handle.NewIter(nil)
	if err != nil {
		return nil, false, err
	}
	return keyAt(iter, iter.First())
}

func (p *pebbleImpl) NextKey(key []byte) ([]byte, bool, error) {
	if p.closed {
		return nil, false, db.ErrClosed
	}
	iter, err := p.handle.NewIter(&pebble.IterOptions{LowerBound: key})
	if err != nil {
		return nil, false, err
	}
	valid := iter.SeekGE(key)
	if valid && bytes.Equal(iter.Key(), key) {
		valid = iter.Next()
	}
	return keyAt(iter, valid)
}

// keyAt copies the current key of iter (if valid) and closes the iterator
func keyAt(iter *pebble.Iterator, valid bool) ([]byte, bool, error) {
	var key []byte
	if valid {
		key = make([]byte, len(iter.Key()))
		copy(key, iter.Key())
	}
	if err := iter.Close(); err != nil {
		return nil, false, err
	}
	return key, valid, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the pebble directory
func (p *pebbleImpl) GetInfo() db.DatabaseInfo {
	meta := &struct {
		ValueSizes    util.SizeSummary `json:"value_sizes"`
		DiskSpace     uint64           `json:"disk_space"`
		WALBytes      uint64           `json:"wal_bytes"`
		FlushCount    int64            `json:"flush_count"`
		Compactions   int64            `json:"compactions"`
		ReadAmplified int              `json:"read_amplification"`
		Info          string           `json:"info"`
	}{
		Info: "ValueSizes is estimated from a sample of the first entries.",
	}

	if !p.closed {
		histogram := util.NewSizeHistogram()
		if iter, err := p.handle.NewIter(nil); err == nil {
			n := 0
			for valid := iter.First(); valid && n < infoSamples; valid = iter.Next() {
				histogram.AddSample(len(iter.Value()))
				n++
			}
			_ = iter.Close()
		}
		meta.ValueSizes = histogram.Summary()

		m := p.handle.Metrics()
		meta.DiskSpace = m.DiskSpaceUsage()
		meta.WALBytes = m.WAL.Size
		meta.FlushCount = m.Flush.Count
		meta.Compactions = m.Compact.Count
		meta.ReadAmplified = m.ReadAmp()
	}

	return db.DatabaseInfo{
		Path:              p.path,
		SizeBytes:         util.DiskUsage(p.path),
		DbType:            db.ImplPebble,
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
func (p *pebbleImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// Close flushes and closes the pebble directory
func (p *pebbleImpl) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	log.Debugf("closing pebble dir %s", p.path)
	return p.handle.Close()
}
