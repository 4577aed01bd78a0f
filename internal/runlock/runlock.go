// Package runlock serializes pipeline runs against the same data directory.
// Concurrent runs would race on the store and on artifact regeneration, so
// the second run fails fast instead of queueing.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning indicates another process holds the run lock.
var ErrAlreadyRunning = errors.New("another chronicle run is already in progress")

// Lock is a file-based exclusive lock over one data directory.
type Lock struct {
	path string
	lock *flock.Flock
}

// New constructs a lock for the given data directory.
func New(dataDir string) *Lock {
	path := filepath.Join(dataDir, "chronicle.lock")
	return &Lock{path: path, lock: flock.New(path)}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock without blocking. A held lock returns
// ErrAlreadyRunning.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock: %s)", ErrAlreadyRunning, l.path)
	}
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *Lock) Release() error {
	return l.lock.Unlock()
}
