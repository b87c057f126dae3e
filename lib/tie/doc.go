// Package tie binds a durable key-value store to a named hash parameter of a
// host namespace.
//
// A Binder is an explicit context object. It holds at most one binding and
// moves between two states:
//
//	Untied --Tie(name, kind, path)--> Tied --Untie(name)--> Untied
//
// Tie opens the engine selected by kind (db/bolt, db/pebble, db/snapshot, or
// the alias db/gdbm) in create, read-write and sync mode, wraps it with call
// timers and the lstore bridge, and registers the bridge under name. A second
// Tie while tied fails with AlreadyTiedError. Only one store may be tied at a
// time.
//
// Untie removes the parameter and closes the engine. Untie without a binding
// fails with NotTiedError, untie of another name fails with NameMismatchError.
//
// All failures are *Error values. Match them with errors.Is against the
// sentinels (ErrConfig, ErrAlreadyTied, ErrStoreOpen, ErrParamCreate,
// ErrNotTied, ErrNameMismatch, ErrStoreClose).
package tie
