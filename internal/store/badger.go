package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/graph"
)

// nodeKeyPrefix prefixes every node key; the value is the JSON child list.
const nodeKeyPrefix = "n/"

// BadgerStore keeps the graph in a BadgerDB directory, one key per expanded
// node.
type BadgerStore struct {
	db *badger.DB

	mu     sync.Mutex
	closed bool
}

var _ GraphStore = (*BadgerStore)(nil)

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// NewBadgerStore opens (or creates) a Badger database in dir. An empty dir
// opens an in-memory database.
func NewBadgerStore(dir string, logger *slog.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.IOError("failed to create store directory", err)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.IOError(fmt.Sprintf("failed to open badger store %s", dir), err)
	}
	return &BadgerStore{db: db}, nil
}

// Load implements GraphStore.
func (s *BadgerStore) Load(_ context.Context) (graph.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graph.Snapshot{}, errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	var snap graph.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(nodeKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), nodeKeyPrefix)
			children := []string{}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &children)
			}); err != nil {
				return errors.New(errors.ErrCodeCorruptGraph,
					fmt.Sprintf("node %q has an unreadable child list", id), err)
			}
			snap.Entries = append(snap.Entries, graph.Entry{ID: id, Children: children})
		}
		return nil
	})
	if err != nil {
		if errors.GetCode(err) != "" {
			return graph.Snapshot{}, err
		}
		return graph.Snapshot{}, errors.IOError("failed to read badger store", err)
	}
	return snap, nil
}

// Save implements GraphStore. Keys of nodes missing from snap are removed.
func (s *BadgerStore) Save(_ context.Context, snap graph.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	keep := make(map[string]struct{}, len(snap.Entries))
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, e := range snap.Entries {
		children := e.Children
		if children == nil {
			children = []string{}
		}
		val, err := json.Marshal(children)
		if err != nil {
			return errors.InternalError("failed to encode child list", err)
		}
		key := nodeKeyPrefix + e.ID
		keep[key] = struct{}{}
		if err := wb.Set([]byte(key), val); err != nil {
			return errors.IOError("failed to stage node", err)
		}
	}

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(nodeKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if _, ok := keep[string(it.Item().Key())]; !ok {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return errors.IOError("failed to scan badger store", err)
	}
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return errors.IOError("failed to stage delete", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return errors.IOError("failed to write badger store", err)
	}
	return nil
}

// Close closes the database. Idempotent.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
