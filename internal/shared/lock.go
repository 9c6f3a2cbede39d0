package shared

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".tapedeck.lock"

// DirLock is an advisory lock on a destination root so two processes never write the same library.
type DirLock struct {
	lock *flock.Flock
}

// LockDir acquires the lock file inside dir, creating dir when missing.
//
// Returns [ErrLocked] when another process holds it.
func LockDir(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}

	fl := flock.New(filepath.Join(dir, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return &DirLock{lock: fl}, nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.lock.Path()
}

// Unlock releases the lock and removes the lock file.
func (l *DirLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		return err
	}
	return os.Remove(l.lock.Path())
}
