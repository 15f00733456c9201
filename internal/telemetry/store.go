package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// unreachableCap bounds the unreachable_pairs table.
const unreachableCap = 100

// SQLiteMetricsStore implements SolveMetricsStore using SQLite.
type SQLiteMetricsStore struct {
	db    *sql.DB
	owned bool
}

var _ SolveMetricsStore = (*SQLiteMetricsStore)(nil)

// NewSQLiteMetricsStore wraps an open database. The tables must already exist
// (see InitTelemetrySchema). The caller keeps ownership of db.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// OpenSQLiteMetricsStore opens (or creates) the telemetry database at path
// and creates its schema. Close closes the database.
func OpenSQLiteMetricsStore(path string) (*SQLiteMetricsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := InitTelemetrySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteMetricsStore{db: db, owned: true}, nil
}

// InitTelemetrySchema creates the telemetry tables if they don't exist.
func InitTelemetrySchema(db *sql.DB) error {
	schema := `
	-- One row per finished solve
	CREATE TABLE IF NOT EXISTS solve_runs (
		run_id     TEXT PRIMARY KEY,
		start      TEXT NOT NULL,
		goal       TEXT NOT NULL,
		tolerance  INTEGER NOT NULL,
		status     TEXT NOT NULL,
		distance   INTEGER NOT NULL,
		paths      INTEGER NOT NULL,
		expanded   INTEGER NOT NULL,
		cache_hits INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		timestamp  TIMESTAMP NOT NULL
	);

	-- Terminal status frequency (aggregated daily)
	CREATE TABLE IF NOT EXISTS solve_status_stats (
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, status)
	);

	-- Start and goal ids (with frequency count)
	CREATE TABLE IF NOT EXISTS solve_endpoints (
		id TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_solve_endpoints_count ON solve_endpoints(count DESC);

	-- Pairs that did not reach the goal (circular buffer)
	CREATE TABLE IF NOT EXISTS unreachable_pairs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start TEXT NOT NULL,
		goal TEXT NOT NULL,
		status TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	-- Latency histogram
	CREATE TABLE IF NOT EXISTS solve_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// AddRun records one solve. A repeated run id is ignored.
func (s *SQLiteMetricsStore) AddRun(e SolveEvent) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO solve_runs
			(run_id, start, goal, tolerance, status, distance, paths, expanded, cache_hits, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, e.Start, e.Goal, e.Tolerance, e.Status, e.Distance, e.Paths,
		e.Expanded, e.CacheHits, e.Latency.Milliseconds(), e.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert solve run: %w", err)
	}
	return nil
}

// SaveStatusCounts upserts daily status counts.
func (s *SQLiteMetricsStore) SaveStatusCounts(date string, counts map[string]int64) error {
	return s.upsertDaily(`
		INSERT INTO solve_status_stats (date, status, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, status) DO UPDATE SET count = count + excluded.count
	`, date, counts)
}

// GetStatusCounts retrieves counts for a date range.
func (s *SQLiteMetricsStore) GetStatusCounts(from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT status, SUM(count) as total
		FROM solve_status_stats
		WHERE date >= ? AND date <= ?
		GROUP BY status
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// UpsertEndpointCounts updates endpoint frequency counts.
func (s *SQLiteMetricsStore) UpsertEndpointCounts(counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO solve_endpoints (id, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for id, count := range counts {
		if _, err := stmt.Exec(id, count); err != nil {
			return fmt.Errorf("upsert endpoint count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTopEndpoints retrieves the top N endpoints by frequency.
func (s *SQLiteMetricsStore) GetTopEndpoints(limit int) ([]EndpointCount, error) {
	rows, err := s.db.Query(`
		SELECT id, count
		FROM solve_endpoints
		ORDER BY count DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top endpoints: %w", err)
	}
	defer rows.Close()

	var out []EndpointCount
	for rows.Next() {
		var ec EndpointCount
		if err := rows.Scan(&ec.ID, &ec.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

// AddUnreachable records a pair and trims the table to the newest entries.
func (s *SQLiteMetricsStore) AddUnreachable(p Pair) error {
	_, err := s.db.Exec(`
		INSERT INTO unreachable_pairs (start, goal, status, timestamp)
		VALUES (?, ?, ?, ?)
	`, p.Start, p.Goal, p.Status, p.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert unreachable pair: %w", err)
	}

	_, err = s.db.Exec(`
		DELETE FROM unreachable_pairs
		WHERE id NOT IN (
			SELECT id FROM unreachable_pairs
			ORDER BY id DESC
			LIMIT ?
		)
	`, unreachableCap)
	if err != nil {
		return fmt.Errorf("trim unreachable pairs: %w", err)
	}
	return nil
}

// GetUnreachable retrieves recent unreachable pairs, newest first.
func (s *SQLiteMetricsStore) GetUnreachable(limit int) ([]Pair, error) {
	rows, err := s.db.Query(`
		SELECT start, goal, status, timestamp
		FROM unreachable_pairs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unreachable pairs: %w", err)
	}
	defer rows.Close()

	var out []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.Start, &p.Goal, &p.Status, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveLatencyCounts upserts daily latency histogram counts.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	byName := make(map[string]int64, len(counts))
	for b, c := range counts {
		byName[string(b)] = c
	}
	return s.upsertDaily(`
		INSERT INTO solve_latency_stats (date, bucket, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count
	`, date, byName)
}

// GetLatencyCounts retrieves latency distribution for a date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	rows, err := s.db.Query(`
		SELECT bucket, SUM(count) as total
		FROM solve_latency_stats
		WHERE date >= ? AND date <= ?
		GROUP BY bucket
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query latency counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[LatencyBucket]int64)
	for rows.Next() {
		var bucket string
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[LatencyBucket(bucket)] = count
	}
	return counts, rows.Err()
}

// GetTotals aggregates the runs table.
func (s *SQLiteMetricsStore) GetTotals() (Totals, error) {
	var t Totals
	var first sql.NullString
	err := s.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN paths > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(expanded), 0),
			COALESCE(SUM(cache_hits), 0),
			MIN(timestamp)
		FROM solve_runs
	`).Scan(&t.Solves, &t.Reached, &t.Expanded, &t.CacheHits, &first)
	if err != nil {
		return Totals{}, fmt.Errorf("query totals: %w", err)
	}
	if first.Valid {
		t.First = parseTimestamp(first.String)
	}
	return t, nil
}

// parseTimestamp reads MIN(timestamp), which drivers return as text.
func parseTimestamp(s string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (s *SQLiteMetricsStore) upsertDaily(query, date string, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, count := range counts {
		if _, err := stmt.Exec(date, key, count); err != nil {
			return fmt.Errorf("insert daily count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close releases resources. A database passed to NewSQLiteMetricsStore is
// left open.
func (s *SQLiteMetricsStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
