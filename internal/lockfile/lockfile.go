// Package lockfile provides scoped advisory file locking for cross-process
// coordination between hook invocations. Locks are flock(2)-based: a lock on
// <path>.lock is held for the duration of a mutation and released on all exit
// paths. Lock files are never removed; removal races with other acquirers.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultTimeout bounds how long Acquire waits before giving up.
const DefaultTimeout = 5 * time.Second

// retryInterval is the poll interval while the lock is contended.
const retryInterval = 50 * time.Millisecond

// ErrLockContended is returned when the lock could not be acquired within
// the timeout. Hooks treat this as transient and exit silently.
var ErrLockContended = errors.New("lock contended")

// Handle represents a held lock. Release must be called exactly once.
type Handle struct {
	f    *os.File
	path string
}

// Path returns the lock file path (the guarded path plus ".lock").
func (h *Handle) Path() string {
	return h.path
}

// Release unlocks and closes the lock file. Safe to call on a nil handle.
func (h *Handle) Release() error {
	if h == nil || h.f == nil {
		return nil
	}
	unlockErr := unix.Flock(int(h.f.Fd()), unix.LOCK_UN)
	closeErr := h.f.Close()
	h.f = nil
	if unlockErr != nil {
		return fmt.Errorf("unlock %s: %w", h.path, unlockErr)
	}
	return closeErr
}

// Acquire takes an exclusive lock on <path>.lock, waiting up to
// DefaultTimeout. It returns ErrLockContended when another process holds the
// lock for the whole window.
func Acquire(path string) (*Handle, error) {
	return AcquireTimeout(path, DefaultTimeout)
}

// AcquireTimeout is Acquire with an explicit timeout.
func AcquireTimeout(path string, timeout time.Duration) (*Handle, error) {
	lockPath := path + ".lock"
	// The lock is taken before the guarded file (and its directory) exist,
	// so the first mutation in a fresh project must create the parent here.
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Handle{f: f, path: lockPath}, nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			_ = f.Close()
			return nil, fmt.Errorf("flock %s: %w", lockPath, err)
		}
		if !time.Now().Before(deadline) {
			_ = f.Close()
			return nil, ErrLockContended
		}
		time.Sleep(retryInterval)
	}
}

// WithLock runs fn while holding the lock for path, releasing it on all exit
// paths including panics.
func WithLock(path string, fn func() error) error {
	h, err := Acquire(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = h.Release()
	}()
	return fn()
}
