// Package db provides a standardized interface for durable key-value database engines.
// It defines the KVDB interface that the rest of tKV uses as its store handle,
// so the tie and store layers never depend on a concrete engine.
//
// The package focuses on:
//   - A dbm style protocol: Fetch, Exists, Store (replace), Delete
//   - Cursor based enumeration through FirstKey / NextKey
//   - Feature discovery through capability flags
//   - Metadata reporting through DatabaseInfo
//
// Key Components:
//
//   - KVDB Interface: The core interface that all engines must satisfy. Every
//     mutation has to be durable when the call returns, there is no write-behind
//     buffer that could be lost on a crash.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     advertise through SupportsFeature. Callers check them before each operation.
//
//   - Implementation Identifiers: The Implementation type names the engines
//     ("db/bolt", "db/pebble", "db/snapshot"). The same strings are accepted as
//     backend kinds by ztie.
//
// Note on Cursors:
//   - The enumeration order is whatever order the engine's native cursor yields.
//     Callers must not assume insertion or lexical order across engines.
//   - NextKey takes the previous key, not a cursor object, so a walk survives
//     deletion of the key it is standing on. No snapshot isolation is provided:
//     keys inserted or deleted during a walk may or may not be visited.
//
// Related Packages:
//
// The engines/bolt, engines/pebble and engines/snapshot packages provide the
// implementations. The instrument package wraps any KVDB with call timers.
// The testing package (github.com/ValentinKolb/tKV/lib/db/testing) provides
// a conformance suite that every engine runs.
package db
