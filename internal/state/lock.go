package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout is the default timeout for acquiring a record lock.
const DefaultLockTimeout = 5 * time.Second

// ErrLocked is returned by AcquireRunLock when another process holds the lock.
var ErrLocked = errors.New("already locked by another process")

// withLock acquires an exclusive lock on path.lock, runs fn, then releases.
func withLock(path string, timeout time.Duration, fn func() error) error {
	return lockAndRun(path, timeout, false, fn)
}

// withReadLock acquires a shared lock on path.lock, runs fn, then releases.
func withReadLock(path string, timeout time.Duration, fn func() error) error {
	return lockAndRun(path, timeout, true, fn)
}

func lockAndRun(path string, timeout time.Duration, shared bool, fn func() error) error {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}
	fileLock := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var (
		locked bool
		err    error
	)
	if shared {
		locked, err = fileLock.TryRLockContext(ctx, 50*time.Millisecond)
	} else {
		locked, err = fileLock.TryLockContext(ctx, 50*time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("acquiring lock on %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("timed out acquiring lock on %s", lockPath)
	}
	defer fileLock.Unlock()

	return fn()
}

// RunLock is a process-wide lock held for the lifetime of a monitor.
type RunLock struct {
	lock *flock.Flock
}

// AcquireRunLock takes <dir>/run.lock without waiting. It returns ErrLocked
// when another monitor already holds it.
func AcquireRunLock(dir string) (*RunLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	l := flock.New(filepath.Join(dir, "run.lock"))
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", l.Path(), ErrLocked)
	}
	return &RunLock{lock: l}, nil
}

// Release drops the run lock.
func (r *RunLock) Release() error {
	return r.lock.Unlock()
}
