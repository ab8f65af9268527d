// Package lock provides run locks that keep at most one worker run active.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/gofrs/flock"
)

// Locker takes a named lock without blocking.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// FileLocker holds flock files in a directory. It only serializes runs on a
// single host.
type FileLocker struct {
	dir string

	mu    sync.Mutex
	locks map[string]*flock.Flock
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// NewFileLocker creates dir if needed.
func NewFileLocker(dir string) (*FileLocker, error) {
	if dir == "" {
		return nil, errors.New("lock: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("lock: create dir: %w", err)
	}
	return &FileLocker{dir: dir, locks: make(map[string]*flock.Flock)}, nil
}

// Path returns the lock file used for key.
func (l *FileLocker) Path(key string) string {
	return filepath.Join(l.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".lock")
}

// TryAcquire takes the file lock for key. It returns false if another process
// or another holder in this process has it.
func (l *FileLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.locks[key]; held {
		return false, nil
	}

	fl := flock.New(l.Path(key))
	ok, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	l.locks[key] = fl
	return true, nil
}

// Release unlocks key. Releasing a key that is not held is a no-op.
func (l *FileLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	fl, ok := l.locks[key]
	delete(l.locks, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("unlock %q: %w", key, err)
	}
	return nil
}

// Noop always grants the lock. It backs runs with locking disabled.
type Noop struct{}

func (Noop) TryAcquire(context.Context, string) (bool, error) { return true, nil }
func (Noop) Release(context.Context, string) error            { return nil }
