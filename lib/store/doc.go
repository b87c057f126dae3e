// Package store defines the accessor bridge between a tied hash and a durable
// key-value database.
//
// Key Components:
//
//   - IStore Interface: get, set, unset, has and scan over string keys and
//     opaque byte values. A missing key reads as an empty value, deleting an
//     absent key is a no-op and a scan fetches each value lazily while it walks
//     the engine's first-key / next-key cursor.
//
//   - Entry: the read-only (key, value) view produced by a scan. It never
//     aliases engine memory.
//
//   - Error System: failures carry a RetCode (internal error, unsupported
//     operation, invalid operation, invalid key) and a message. Use HasCode to
//     branch on a specific code.
//
// Implementations:
//
//	- Local Store (lstore): a direct wrapper around one db.KVDB. It checks the
//	  engine's feature flags before each call and counts operations and errors
//	  with VictoriaMetrics counters.
//	  Available in the "github.com/ValentinKolb/tKV/lib/store/lstore" package.
package store
