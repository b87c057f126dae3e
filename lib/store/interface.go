package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/tKV/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the mapping surface a tied hash delegates to.
// It turns every associative access (read, write, delete, enumerate) into
// calls on one open db.KVDB. All failures are returned as *Error.
type IStore interface {
	// Get returns the value for key. A missing key yields an empty, non-nil
	// value and no error. Get never creates the key.
	Get(key string) (value []byte, err error)
	// Set inserts or replaces the value for key. The write is durable when Set returns.
	Set(key string, value []byte) (err error)
	// Unset deletes key. Deleting an absent key is a no-op.
	Unset(key string) (err error)
	// Has reports whether key is present, which tells an absent key apart
	// from a key bound to an empty value.
	Has(key string) (loaded bool, err error)
	// Scan walks all entries in engine order and calls visit for each of them.
	// The value is fetched when the key is visited, keys removed during the walk
	// are skipped. Returning false from visit stops the walk.
	Scan(visit func(e Entry) bool) (err error)
	// GetDBInfo returns metadata about the database underlying the store.
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// HasCode reports whether err is a *Error carrying code.
func HasCode(err error, code RetCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCInvalidKey                          // 4: The key is not acceptable (empty).
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCInvalidKey:
		return "InvalidKey"
	default:
		return "Unknown"
	}
}
