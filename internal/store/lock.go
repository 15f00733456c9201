package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/pathmap/internal/errors"
)

// Lock is an exclusive cross-process lock on a store, backed by gofrs/flock.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// AcquireLock takes the lock at path, retrying with backoff for up to
// timeout. A lock still held by another process after that fails with
// ERR_207_STORE_LOCKED.
func AcquireLock(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.IOError("failed to create lock directory", err)
	}

	l := &Lock{path: path, flock: flock.New(path)}
	err := errors.Retry(ctx, errors.RetryConfigWithin(timeout), func() error {
		ok, err := l.flock.TryLock()
		if err != nil {
			return errors.IOError("failed to acquire store lock", err)
		}
		if !ok {
			return errors.New(errors.ErrCodeStoreLocked, "store is locked", nil)
		}
		return nil
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeStoreLocked) {
			return nil, errors.New(errors.ErrCodeStoreLocked,
				fmt.Sprintf("graph store is in use by another process (%s)", path), err).
				WithDetail("lock", path).
				WithSuggestion("Wait for the other pathmap process to finish or raise store.lock_timeout")
		}
		return nil, err
	}

	l.locked = true
	return l, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks. Safe to call more than once.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return errors.IOError("failed to release store lock", err)
	}
	return nil
}
