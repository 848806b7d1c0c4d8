// Package store persists execution snapshots in SQLite so status queries keep
// working after the process that ran the workflow has exited.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ariel-frischer/appgen/internal/execution"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown execution id.
var ErrNotFound = errors.New("execution not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

const schemaV1 = `
CREATE TABLE IF NOT EXISTS executions (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	stage            TEXT NOT NULL DEFAULT '',
	progress_percent INTEGER NOT NULL DEFAULT 0,
	description      TEXT NOT NULL DEFAULT '',
	snapshot_json    TEXT NOT NULL DEFAULT '{}',
	created_at_unix  INTEGER NOT NULL DEFAULT 0,
	updated_at_unix  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);
CREATE INDEX IF NOT EXISTS idx_executions_created ON executions(created_at_unix);
`

// Store is a SQLite-backed snapshot repository. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single writer; WAL still serves readers.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces the snapshot of an execution. A snapshot older than
// the stored one is ignored, so out-of-order saves never regress the record.
func (s *Store) Save(ctx context.Context, snap execution.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}

	const q = `INSERT INTO executions (id, status, stage, progress_percent, description, snapshot_json, created_at_unix, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status = excluded.status,
	stage = excluded.stage,
	progress_percent = excluded.progress_percent,
	snapshot_json = excluded.snapshot_json,
	updated_at_unix = excluded.updated_at_unix
WHERE excluded.updated_at_unix >= executions.updated_at_unix`
	_, err = s.db.ExecContext(ctx, q,
		snap.ID,
		string(snap.Status),
		snap.Stage,
		snap.ProgressPercent,
		snap.Requirements.Description,
		string(data),
		snap.CreatedAt.UnixNano(),
		snap.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// Get returns the stored snapshot for id.
func (s *Store) Get(ctx context.Context, id string) (execution.Snapshot, error) {
	const q = `SELECT snapshot_json FROM executions WHERE id = ?`

	var data string
	err := s.db.QueryRowContext(ctx, q, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return execution.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return execution.Snapshot{}, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return decode(data)
}

// Filter narrows List results.
type Filter struct {
	// Status keeps only executions in this status when set.
	Status execution.Status
	// Limit caps the number of results; DefaultListLimit when <= 0.
	Limit int
}

// List returns stored snapshots, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]execution.Snapshot, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}

	q := `SELECT snapshot_json FROM executions`
	args := []any{}
	if f.Status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY created_at_unix DESC, id LIMIT ?`
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := []execution.Snapshot{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func decode(data string) (execution.Snapshot, error) {
	var snap execution.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return execution.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
