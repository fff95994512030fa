// Package store persists a ledger of pipeline runs in SQLite, using the
// pure-Go modernc driver (blank-imported by the binaries).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	InitStart    string
	InitEnd      string
	PostStart    string
	PostEnd      string
	BufferMeters float64
	SceneCount   int
	FireCount    int
	BurnedPixels int
	Outcome      string
	Error        string
}

// Store wraps the runs database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path with WAL and
// a busy timeout, and returns a migrated Store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database. Callers own migration.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    init_start TEXT NOT NULL,
    init_end TEXT NOT NULL,
    post_start TEXT NOT NULL,
    post_end TEXT NOT NULL,
    buffer_meters REAL NOT NULL,
    scene_count INTEGER NOT NULL,
    fire_count INTEGER NOT NULL,
    burned_pixels INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`)
	if err != nil {
		return fmt.Errorf("migrate run ledger: %w", err)
	}
	return nil
}

// InsertRun appends a run record and returns its id.
func (s *Store) InsertRun(ctx context.Context, run Run) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, finished_at, init_start, init_end, post_start, post_end,
			buffer_meters, scene_count, fire_count, burned_pixels, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.InitStart, run.InitEnd, run.PostStart, run.PostEnd,
		run.BufferMeters, run.SceneCount, run.FireCount, run.BurnedPixels,
		run.Outcome, run.Error)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert run id: %w", err)
	}
	return id, nil
}

// LatestRun returns the most recently started run, or nil when the ledger
// is empty.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` ORDER BY started_at DESC, id DESC LIMIT 1`)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectRuns = `
	SELECT id, started_at, finished_at, init_start, init_end, post_start, post_end,
		buffer_meters, scene_count, fire_count, burned_pixels, outcome, error
	FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt,
		&run.InitStart, &run.InitEnd, &run.PostStart, &run.PostEnd,
		&run.BufferMeters, &run.SceneCount, &run.FireCount, &run.BurnedPixels,
		&run.Outcome, &run.Error)
	return run, err
}
