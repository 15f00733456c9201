package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/graph"
)

const sqliteSchemaVersion = 1

// SQLiteStore keeps the graph in two tables: nodes(id) for expanded nodes
// and edges(parent, position, child) for their ordered children.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	closed bool
}

var _ GraphStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.IOError("failed to create store directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.IOError("failed to open graph database", err)
	}
	return newSQLiteStore(db, path)
}

// NewSQLiteStoreFromDB wraps an open database. The store owns db afterwards.
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	return newSQLiteStore(db, "")
}

func newSQLiteStore(db *sql.DB, path string) (*SQLiteStore, error) {
	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.IOError("failed to set pragma", err)
		}
	}

	var integrity string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil || integrity != "ok" {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeCorruptGraph,
			fmt.Sprintf("graph database failed integrity check: %s", integrity), err).
			WithSuggestion("Delete the database file; the graph is rebuilt on the next solve")
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.IOError("failed to initialize schema", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS edges (
		parent   TEXT    NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		child    TEXT    NOT NULL,
		PRIMARY KEY (parent, position)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_child ON edges(child);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", sqliteSchemaVersion)
	return err
}

// Load implements GraphStore.
func (s *SQLiteStore) Load(ctx context.Context) (graph.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graph.Snapshot{}, errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	var snap graph.Snapshot
	byID := make(map[string]int)

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM nodes ORDER BY id")
	if err != nil {
		return graph.Snapshot{}, errors.IOError("failed to query nodes", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return graph.Snapshot{}, errors.IOError("failed to scan node", err)
		}
		byID[id] = len(snap.Entries)
		snap.Entries = append(snap.Entries, graph.Entry{ID: id, Children: []string{}})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return graph.Snapshot{}, errors.IOError("failed to read nodes", err)
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, "SELECT parent, child FROM edges ORDER BY parent, position")
	if err != nil {
		return graph.Snapshot{}, errors.IOError("failed to query edges", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var parent, child string
		if err := rows.Scan(&parent, &child); err != nil {
			return graph.Snapshot{}, errors.IOError("failed to scan edge", err)
		}
		i, ok := byID[parent]
		if !ok {
			return graph.Snapshot{}, errors.New(errors.ErrCodeCorruptGraph,
				fmt.Sprintf("edge from unknown node %q", parent), nil)
		}
		snap.Entries[i].Children = append(snap.Entries[i].Children, child)
	}
	if err := rows.Err(); err != nil {
		return graph.Snapshot{}, errors.IOError("failed to read edges", err)
	}
	return snap, nil
}

// Save implements GraphStore. The snapshot replaces the stored graph in one
// transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap graph.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.IOError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM edges"); err != nil {
		return errors.IOError("failed to clear edges", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes"); err != nil {
		return errors.IOError("failed to clear nodes", err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, "INSERT INTO nodes (id) VALUES (?)")
	if err != nil {
		return errors.IOError("failed to prepare node insert", err)
	}
	defer func() { _ = nodeStmt.Close() }()

	edgeStmt, err := tx.PrepareContext(ctx, "INSERT INTO edges (parent, position, child) VALUES (?, ?, ?)")
	if err != nil {
		return errors.IOError("failed to prepare edge insert", err)
	}
	defer func() { _ = edgeStmt.Close() }()

	for _, e := range snap.Entries {
		if _, err := nodeStmt.ExecContext(ctx, e.ID); err != nil {
			return errors.IOError(fmt.Sprintf("failed to insert node %q", e.ID), err)
		}
		for pos, child := range e.Children {
			if _, err := edgeStmt.ExecContext(ctx, e.ID, pos, child); err != nil {
				return errors.IOError(fmt.Sprintf("failed to insert edge %q -> %q", e.ID, child), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.IOError("failed to commit snapshot", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
