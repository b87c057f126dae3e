package bolt

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	bbolt "go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultFileMode    os.FileMode = 0666        // same mode the classic dbm bindings use
	defaultOpenTimeout             = time.Second // wait this long for the file lock
	infoSamples                    = 100         // values sampled by GetInfo
)

var (
	bucketName = []byte("tkv")
	log        = logger.GetLogger("db")
)

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// boltImpl stores all entries in a single bucket of a single bbolt file.
// bbolt fsyncs on every committed read-write transaction, so each Store and
// Delete is durable when it returns.
type boltImpl struct {
	path   string
	handle *bbolt.DB
	closed bool
}

// DBOptions configures the bolt engine
type DBOptions struct {
	FileMode    os.FileMode   // permission bits for a newly created file (0 = 0666)
	OpenTimeout time.Duration // how long to wait for the exclusive file lock (0 = 1s)
}

// DefaultOptions returns the default bolt options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		FileMode:    defaultFileMode,
		OpenTimeout: defaultOpenTimeout,
	}
}

// NewBoltDB opens the bolt file at path, creating it if it does not exist.
func NewBoltDB(path string, opts *DBOptions) (db.KVDB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.FileMode == 0 {
		opts.FileMode = defaultFileMode
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}

	handle, err := bbolt.Open(path, opts.FileMode, &bbolt.Options{
		Timeout: opts.OpenTimeout,
		NoSync:  false,
	})
	if err != nil {
		return nil, fmt.Errorf("open bolt file %s: %w", path, err)
	}

	err = handle.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("create bucket in %s: %w", path, err)
	}

	log.Debugf("opened bolt file %s", path)
	return &boltImpl{path: path, handle: handle}, nil
}

// Factory returns a db.Factory that opens bolt files with opts.
func Factory(opts *DBOptions) db.Factory {
	return func(path string) (db.KVDB, error) {
		return NewBoltDB(path, opts)
	}
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

func (b *boltImpl) Store(key, value []byte) error {
	if b.closed {
		return db.ErrClosed
	}
	if len(key) == 0 {
		return db.ErrEmptyKey
	}
	return b.handle.Update(func(tx *bbolt.Tx) error {
		// bbolt keeps a reference to value until commit, the caller may reuse it afterwards
		return tx.Bucket(bucketName).Put(key, value)
	})
}

func (b *boltImpl) Delete(key []byte) error {
	if b.closed {
		return db.ErrClosed
	}
	if len(key) == 0 {
		return nil
	}
	return b.handle.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	})
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Fetch uses a cursor seek instead of Bucket.Get so that an empty value and
// a missing key stay distinguishable.
func (b *boltImpl) Fetch(key []byte) ([]byte, bool, error) {
	if b.closed {
		return nil, false, db.ErrClosed
	}

	var (
		value []byte
		ok    bool
	)
	err := b.handle.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket(bucketName).Cursor().Seek(key)
		if k == nil || !bytes.Equal(k, key) {
			return nil
		}
		ok = true
		// bbolt memory is only valid inside the transaction -> copy
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	return value, ok, err
}

func (b *boltImpl) Exists(key []byte) (bool, error) {
	if b.closed {
		return false, db.ErrClosed
	}

	var ok bool
	err := b.handle.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket(bucketName).Cursor().Seek(key)
		ok = k != nil && bytes.Equal(k, key)
		return nil
	})
	return ok, err
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Cursor Operations
// --------------------------------------------------------------------------

func (b *boltImpl) FirstKey() ([]byte, bool, error) {
	if b.closed {
		return nil, false, db.ErrClosed
	}

	var first []byte
	err := b.handle.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket(bucketName).Cursor().First()
		first = cloneKey(k)
		return nil
	})
	return first, first != nil, err
}

func (b *boltImpl) NextKey(key []byte) ([]byte, bool, error) {
	if b.closed {
		return nil, false, db.ErrClosed
	}

	var next []byte
	err := b.handle.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		k, _ := c.Seek(key)
		// if key was deleted in the meantime the seek already points to its successor
		if k != nil && bytes.Equal(k, key) {
			k, _ = c.Next()
		}
		next = cloneKey(k)
		return nil
	})
	return next, next != nil, err
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the bolt file
func (b *boltImpl) GetInfo() db.DatabaseInfo {
	meta := &struct {
		KeyCount   int              `json:"key_count"`
		ValueSizes util.SizeSummary `json:"value_sizes"`
		FreePages  int              `json:"free_pages"`
		Info       string           `json:"info"`
	}{
		Info: "ValueSizes is estimated from a sample of the first entries.",
	}

	if !b.closed {
		histogram := util.NewSizeHistogram()
		_ = b.handle.View(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket(bucketName)
			meta.KeyCount = bucket.Stats().KeyN

			c := bucket.Cursor()
			n := 0
			for k, v := c.First(); k != nil && n < infoSamples; k, v = c.Next() {
				histogram.AddSample(len(v))
				n++
			}
			return nil
		})
		meta.ValueSizes = histogram.Summary()
		meta.FreePages = b.handle.Stats().FreePageN
	}

	return db.DatabaseInfo{
		Path:              b.path,
		SizeBytes:         util.DiskUsage(b.path),
		DbType:            db.ImplBolt,
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
func (b *boltImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// Close releases the file lock and closes the file
func (b *boltImpl) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	log.Debugf("closing bolt file %s", b.path)
	return b.handle.Close()
}

func cloneKey(k []byte) []byte {
	if k == nil {
		return nil
	}
	out := make([]byte, len(k))
	copy(out, k)
	return out
}
