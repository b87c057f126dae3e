// Package util provides utility components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - statistics: a SizeHistogram for tracking value size distribution in GetInfo
//   - files: helpers for durable file replacement and on-disk size reporting
package util
