package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Skryldev/audiobatch/pkg/retry"
)

// LockFileName is created in the output root while a run holds the lock.
const LockFileName = ".audiobatch.lock"

// ErrLocked is returned when another run holds the output root.
var ErrLocked = errors.New("output directory is locked by another run")

// RunLock is an advisory, cross-process lock on an output root
type RunLock struct {
	path string
	lock *flock.Flock
}

// NewRunLock prepares a lock for outputDir without acquiring it.
func NewRunLock(outputDir string) *RunLock {
	path := filepath.Join(outputDir, LockFileName)
	return &RunLock{path: path, lock: flock.New(path)}
}

// Path returns the lock file location
func (l *RunLock) Path() string { return l.path }

// Acquire tries to take the lock, backing off per cfg while another
// process holds it.
func (l *RunLock) Acquire(ctx context.Context, cfg retry.Config) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	return retry.Do(ctx, cfg, func() error {
		ok, err := l.lock.TryLock()
		if err != nil {
			return &retry.Permanent{Err: fmt.Errorf("acquire lock %s: %w", l.path, err)}
		}
		if !ok {
			return ErrLocked
		}
		return nil
	})
}

// Release drops the lock. The lock file stays in place: unlinking it
// while another process waits on it would let two runs hold different
// inodes.
func (l *RunLock) Release() error {
	if !l.lock.Locked() {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// DefaultLockRetry waits up to a few seconds for a concurrent run to finish.
func DefaultLockRetry() retry.Config {
	return retry.Config{
		MaxAttempts: 4,
		Delay:       250 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    2 * time.Second,
	}
}
