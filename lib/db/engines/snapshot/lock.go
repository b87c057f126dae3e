package snapshot

import (
	"errors"
	"fmt"
	"os"
)

// LockSuffix is appended to the snapshot path to name its lock file
const LockSuffix = ".lock"

// ErrLocked is returned when another handle already holds the snapshot
var ErrLocked = errors.New("snapshot is locked by another handle")

// acquireLock opens path+LockSuffix and locks it for the lifetime of the handle.
// The lock file itself is left on disk.
func acquireLock(path string, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path+LockSuffix, os.O_RDWR|os.O_CREATE, perm)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := tryLock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s (%v)", ErrLocked, path, err)
	}
	return f, nil
}

// releaseLock unlocks and closes the lock file
func releaseLock(f *os.File) error {
	err := unlock(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
