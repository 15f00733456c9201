// Package store persists the structural graph (expanded node ids and their
// ordered child ids) between runs. Scores and claim state are never stored.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/pathmap/internal/graph"
	"github.com/Aman-CERP/pathmap/internal/logging"
)

// GraphStore loads and saves graph snapshots.
type GraphStore interface {
	// Load returns the stored snapshot, or an empty one for a new store.
	Load(ctx context.Context) (graph.Snapshot, error)

	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap graph.Snapshot) error

	// Close releases the store.
	Close() error
}

// Backend selects a GraphStore implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
	BackendFile   Backend = "file"
)

// DefaultLockTimeout bounds how long Open waits for another process to
// release the store.
const DefaultLockTimeout = 5 * time.Second

// Config selects and locates a store.
type Config struct {
	Backend     Backend
	Path        string // empty means DefaultPath(Backend)
	LockTimeout time.Duration
}

// DefaultPath returns the default location of a backend's data under the
// pathmap data directory.
func DefaultPath(b Backend) string {
	dir := logging.DefaultDataDir()
	switch b {
	case BackendBadger:
		return filepath.Join(dir, "graph.badger")
	case BackendFile:
		return filepath.Join(dir, "map.dat")
	default:
		return filepath.Join(dir, "graph.db")
	}
}

// Open locks the store path and opens the configured backend. The lock is
// released by Close.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (GraphStore, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendSQLite
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath(cfg.Backend)
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}

	lock, err := AcquireLock(ctx, cfg.Path+".lock", cfg.LockTimeout)
	if err != nil {
		return nil, err
	}

	var inner GraphStore
	switch cfg.Backend {
	case BackendSQLite:
		inner, err = NewSQLiteStore(cfg.Path)
	case BackendBadger:
		inner, err = NewBadgerStore(cfg.Path, logger)
	case BackendFile:
		inner, err = NewFileStore(cfg.Path), nil
	default:
		err = fmt.Errorf("unknown store backend %q (want sqlite, badger or file)", cfg.Backend)
	}
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	logger.Debug("graph store opened",
		slog.String("backend", string(cfg.Backend)),
		slog.String("path", cfg.Path))
	return &lockedStore{GraphStore: inner, lock: lock}, nil
}

// lockedStore releases the process lock after closing the backend.
type lockedStore struct {
	GraphStore
	lock *Lock
}

func (s *lockedStore) Close() error {
	err := s.GraphStore.Close()
	if rerr := s.lock.Release(); err == nil {
		err = rerr
	}
	return err
}
