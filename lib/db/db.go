package db

import "errors"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplBolt     Implementation = "db/bolt"
	ImplPebble   Implementation = "db/pebble"
	ImplSnapshot Implementation = "db/snapshot"
)

var (
	// ErrClosed is returned by every operation on a database that was already closed.
	ErrClosed = errors.New("database is closed")
	// ErrEmptyKey is returned when an empty key is passed to a write operation.
	ErrEmptyKey = errors.New("key must not be empty")
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureFetch  Feature = 1 << iota // Support for Fetch operations
	FeatureExists                     // Support for Exists operations
	FeatureStore                      // Support for Store operations
	FeatureDelete                     // Support for Delete operations
	FeatureScan                       // Support for FirstKey/NextKey iteration
	FeatureSync                       // Every mutation is durable before it returns
)

func (f Feature) String() string {
	switch f {
	case FeatureFetch:
		return "Fetch"
	case FeatureExists:
		return "Exists"
	case FeatureStore:
		return "Store"
	case FeatureDelete:
		return "Delete"
	case FeatureScan:
		return "Scan"
	case FeatureSync:
		return "Sync"
	default:
		return "Unknown"
	}
}

// MarshalText renders features by name in JSON output
func (f Feature) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

type DatabaseInfo struct {
	Path              string         `json:"path"`
	SizeBytes         int64          `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for durable, file backed key-value databases.
// It mirrors the classic dbm protocol: fetch, store (replace), delete and a
// cursor based first-key / next-key walk.
// Keys and values are opaque byte strings. Returned slices are always copies
// owned by the caller.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Store inserts or replaces the value for key.
	// The write must be durable when Store returns.
	Store(key, value []byte) (err error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Fetch returns the value stored for key.
	// The boolean return value indicates whether the key was found.
	Fetch(key []byte) (value []byte, loaded bool, err error)

	// Exists reports whether key is present.
	Exists(key []byte) (loaded bool, err error)

	// --------------------------------------------------------------------------
	// Cursor Operations
	// --------------------------------------------------------------------------

	// FirstKey returns the first key in the engine's native order.
	// ok is false if the database is empty.
	FirstKey() (key []byte, ok bool, err error)

	// NextKey returns the key that follows key in the engine's native order.
	// key does not need to exist anymore, so entries can be deleted between two calls.
	// ok is false once the walk is exhausted.
	NextKey(key []byte) (next []byte, ok bool, err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close releases the underlying file. Calling Close twice is a no-op.
	Close() (err error)
}

// Factory opens (and creates if missing) a database at path.
type Factory func(path string) (KVDB, error)

// FeatureList expands a feature mask into its single features.
func FeatureList(mask Feature) []Feature {
	var out []Feature
	for f := FeatureFetch; f <= FeatureSync; f <<= 1 {
		if mask&f == f {
			out = append(out, f)
		}
	}
	return out
}
