package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created inside directories that a batch writes into.
const LockFileName = ".matrixscreen.lock"

// ErrLocked reports a directory already locked by another process.
var ErrLocked = errors.New("directory locked by another run")

// DirLock is an advisory lock on an output directory.
type DirLock struct {
	path string
	lock *flock.Flock
}

// LockDir creates dir if needed and takes a non-blocking exclusive lock on
// its lock file. ErrLocked is returned when another process holds it.
func LockDir(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &DirLock{path: path, lock: lock}, nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string { return l.path }

// Unlock releases the lock. The lock file is left in place.
func (l *DirLock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
