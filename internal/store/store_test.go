package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/graph"
	"github.com/Aman-CERP/pathmap/internal/logging"
)

func sampleSnapshot() graph.Snapshot {
	return graph.Snapshot{Entries: []graph.Entry{
		{ID: "a", Children: []string{"c", "b"}},
		{ID: "b", Children: []string{"d"}},
		{ID: "c", Children: []string{}},
	}}
}

// backends opens one fresh store per backend.
func backends(t *testing.T) map[string]GraphStore {
	t.Helper()
	dir := t.TempDir()

	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "sqlite", "graph.db"))
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", filepath.Join(dir, "mattn.db"))
	require.NoError(t, err)
	mattnStore, err := NewSQLiteStoreFromDB(db)
	require.NoError(t, err)

	badgerStore, err := NewBadgerStore(filepath.Join(dir, "graph.badger"), logging.Discard())
	require.NoError(t, err)

	stores := map[string]GraphStore{
		"sqlite":       sqliteStore,
		"sqlite-mattn": mattnStore,
		"badger":       badgerStore,
		"file":         NewFileStore(filepath.Join(dir, "map.dat")),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestGraphStore_EmptyLoad(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			snap, err := s.Load(context.Background())

			require.NoError(t, err)
			assert.Equal(t, 0, snap.Len())
		})
	}
}

func TestGraphStore_SaveLoadRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Given: a saved snapshot
			require.NoError(t, s.Save(ctx, sampleSnapshot()))

			// When
			got, err := s.Load(ctx)

			// Then: ids come back sorted and child order is preserved
			require.NoError(t, err)
			assert.Equal(t, sampleSnapshot(), got)
		})
	}
}

func TestGraphStore_SaveReplaces(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, sampleSnapshot()))

			// When: a smaller snapshot is saved over it
			next := graph.Snapshot{Entries: []graph.Entry{{ID: "b", Children: []string{"e", "d"}}}}
			require.NoError(t, s.Save(ctx, next))

			// Then: only the new snapshot remains
			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, next, got)
		})
	}
}

func TestGraphStore_ClosedStore(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Close())
			require.NoError(t, s.Close(), "Close is idempotent")

			_, err := s.Load(context.Background())
			assert.True(t, errors.HasCode(err, errors.ErrCodeStoreClosed))

			err = s.Save(context.Background(), sampleSnapshot())
			assert.True(t, errors.HasCode(err, errors.ErrCodeStoreClosed))
		})
	}
}

func TestGraphStore_LoadIntoIndex(t *testing.T) {
	// Given: a snapshot persisted by one index
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "map.dat"))
	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	// When: it is loaded into a fresh index
	snap, err := s.Load(ctx)
	require.NoError(t, err)
	idx := graph.NewIndex()
	require.NoError(t, idx.Load(snap))

	// Then: the structure is restored and the snapshot is stable
	a, ok := idx.Lookup("a")
	require.True(t, ok)
	assert.True(t, a.IsExpanded())
	assert.Equal(t, []string{"c", "b"}, a.ChildIDs())
	assert.Equal(t, sampleSnapshot(), idx.Snapshot())
}

func TestFileStore_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.dat")
	s := NewFileStore(path)

	require.NoError(t, s.Save(context.Background(), sampleSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "3\na\t2\tc\tb\nb\t1\td\nc\t0\n", string(data))
}

func TestFileStore_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad header", content: "x\n"},
		{name: "count mismatch", content: "2\na\t0\n"},
		{name: "child count mismatch", content: "1\na\t3\tb\n"},
		{name: "missing child count", content: "1\na\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "map.dat")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := NewFileStore(path).Load(context.Background())

			assert.True(t, errors.HasCode(err, errors.ErrCodeFileCorrupt))
		})
	}
}

func TestFileStore_RejectsTabInID(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "map.dat"))

	err := s.Save(context.Background(), graph.Snapshot{Entries: []graph.Entry{{ID: "a\tb"}}})

	require.Error(t, err)
	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr), "a failed save must not leave a file behind")
}

func TestSQLiteStore_Reopen(t *testing.T) {
	// Given: a snapshot saved and the store closed
	path := filepath.Join(t.TempDir(), "graph.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleSnapshot()))
	require.NoError(t, s.Close())

	// When: the database is reopened
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// Then
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)
}

func TestBadgerStore_InMemory(t *testing.T) {
	s, err := NewBadgerStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Save(context.Background(), sampleSnapshot()))
	got, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)
}

func TestAcquireLock_Contention(t *testing.T) {
	// Given: a held lock
	path := filepath.Join(t.TempDir(), "graph.db.lock")
	first, err := AcquireLock(context.Background(), path, time.Second)
	require.NoError(t, err)

	// When: a second holder tries with a short timeout
	_, err = AcquireLock(context.Background(), path, 50*time.Millisecond)

	// Then
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreLocked))

	// And: after release the lock is available again
	require.NoError(t, first.Release())
	require.NoError(t, first.Release())
	second, err := AcquireLock(context.Background(), path, time.Second)
	require.NoError(t, err)
	assert.Equal(t, path, second.Path())
	require.NoError(t, second.Release())
}

func TestOpen(t *testing.T) {
	for _, backend := range []Backend{BackendSQLite, BackendBadger, BackendFile} {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "graph-"+string(backend))
			cfg := Config{Backend: backend, Path: path, LockTimeout: 50 * time.Millisecond}

			// Given: an open store
			s, err := Open(ctx, cfg, nil)
			require.NoError(t, err)
			require.NoError(t, s.Save(ctx, sampleSnapshot()))

			// Then: a second open of the same path is refused
			_, err = Open(ctx, cfg, nil)
			assert.True(t, errors.HasCode(err, errors.ErrCodeStoreLocked))

			// And: closing releases the lock and keeps the data
			require.NoError(t, s.Close())
			s, err = Open(ctx, cfg, nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, sampleSnapshot(), got)
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph")

	_, err := Open(context.Background(), Config{Backend: "etcd", Path: path}, nil)
	require.Error(t, err)

	// The lock must have been released on failure.
	l, err := AcquireLock(context.Background(), path+".lock", 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, l.Release())
}
