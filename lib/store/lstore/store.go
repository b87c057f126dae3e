package lstore

import (
	"fmt"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// operation names used in log lines and metric labels
const (
	opGet   = "get"
	opSet   = "set"
	opUnset = "unset"
	opHas   = "has"
	opScan  = "scan"
	opInfo  = "info"
)

type storeImpl struct {
	db      db.KVDB
	metrics *metrics.Set
}

// NewLocalStore creates a bridge over database.
// Operation and error counters are registered in set, a nil set creates a private one.
// The store does not own database, closing it is up to the caller.
func NewLocalStore(database db.KVDB, set *metrics.Set) store.IStore {
	if set == nil {
		set = metrics.NewSet()
	}
	return &storeImpl{
		db:      database,
		metrics: set,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// count records one call of op
func (s *storeImpl) count(op string) {
	s.metrics.GetOrCreateCounter(fmt.Sprintf(`tkv_store_ops_total{op=%q}`, op)).Inc()
}

// fail records and logs an error of op and returns it as *store.Error
func (s *storeImpl) fail(op string, code store.RetCode, format string, args ...interface{}) error {
	s.metrics.GetOrCreateCounter(fmt.Sprintf(`tkv_store_errors_total{op=%q}`, op)).Inc()
	err := store.NewError(code, fmt.Sprintf(format, args...))
	log.Errorf("%s failed: %v", op, err)
	return err
}

// require checks that the engine supports feature before op touches it
func (s *storeImpl) require(op string, feature db.Feature) error {
	if !s.db.SupportsFeature(feature) {
		return s.fail(op, store.RetCUnsupportedOperation, "%s operation is not supported", op)
	}
	return nil
}

// checkKey rejects keys the engines cannot store
func (s *storeImpl) checkKey(op, key string) error {
	if key == "" {
		return s.fail(op, store.RetCInvalidKey, "key must not be empty")
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, error) {
	s.count(opGet)
	if err := s.checkKey(opGet, key); err != nil {
		return nil, err
	}
	if err := s.require(opGet, db.FeatureExists|db.FeatureFetch); err != nil {
		return nil, err
	}

	// existence check first, so a missing key is never created and reads as empty
	ok, err := s.db.Exists([]byte(key))
	if err != nil {
		return nil, s.fail(opGet, store.RetCInternalError, "exists %q: %v", key, err)
	}
	if !ok {
		return []byte{}, nil
	}

	value, ok, err := s.db.Fetch([]byte(key))
	if err != nil {
		return nil, s.fail(opGet, store.RetCInternalError, "fetch %q: %v", key, err)
	}
	if !ok {
		return []byte{}, nil
	}
	return store.NewEntry(key, value).Value(), nil
}

func (s *storeImpl) Set(key string, value []byte) error {
	s.count(opSet)
	if err := s.checkKey(opSet, key); err != nil {
		return err
	}
	if err := s.require(opSet, db.FeatureStore); err != nil {
		return err
	}
	if err := s.db.Store([]byte(key), value); err != nil {
		return s.fail(opSet, store.RetCInternalError, "store %q: %v", key, err)
	}
	return nil
}

func (s *storeImpl) Unset(key string) error {
	s.count(opUnset)
	if err := s.checkKey(opUnset, key); err != nil {
		return err
	}
	if err := s.require(opUnset, db.FeatureDelete); err != nil {
		return err
	}
	if err := s.db.Delete([]byte(key)); err != nil {
		return s.fail(opUnset, store.RetCInternalError, "delete %q: %v", key, err)
	}
	return nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	s.count(opHas)
	if err := s.checkKey(opHas, key); err != nil {
		return false, err
	}
	if err := s.require(opHas, db.FeatureExists); err != nil {
		return false, err
	}
	ok, err := s.db.Exists([]byte(key))
	if err != nil {
		return false, s.fail(opHas, store.RetCInternalError, "exists %q: %v", key, err)
	}
	return ok, nil
}

func (s *storeImpl) Scan(visit func(e store.Entry) bool) error {
	s.count(opScan)
	if err := s.require(opScan, db.FeatureScan|db.FeatureFetch); err != nil {
		return err
	}

	key, ok, err := s.db.FirstKey()
	for ; ok && err == nil; key, ok, err = s.db.NextKey(key) {
		value, loaded, ferr := s.db.Fetch(key)
		if ferr != nil {
			return s.fail(opScan, store.RetCInternalError, "fetch %q: %v", key, ferr)
		}
		if !loaded {
			// removed between the cursor step and the fetch
			continue
		}
		if !visit(store.NewEntry(string(key), value)) {
			return nil
		}
	}
	if err != nil {
		return s.fail(opScan, store.RetCInternalError, "cursor: %v", err)
	}
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	s.count(opInfo)
	return s.db.GetInfo(), nil
}
