// Package state keeps doclens's local scan state in SQLite: which commit of
// each repository was last synchronized, and a history of past runs. It is
// the fallback baseline for incremental scans when --since-sha is not given.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	scan_id     TEXT NOT NULL,
	repository  TEXT NOT NULL,
	commit_sha  TEXT NOT NULL,
	scan_type   TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (scan_id, repository)
);
CREATE INDEX IF NOT EXISTS idx_scan_runs_repo ON scan_runs (repository, started_at);
`

// Run is one recorded repository scan.
type Run struct {
	ScanID     string
	Repository string
	CommitSHA  string
	ScanType   string
	Status     string
	StartedAt  time.Time
	Duration   time.Duration
}

// Store records scan runs in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the state database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastCommitSHA returns the commit of the most recent successful scan of a
// repository, or "" when the repository has never been scanned.
func (s *Store) LastCommitSHA(ctx context.Context, repository string) (string, error) {
	const q = `
		SELECT commit_sha FROM scan_runs
		WHERE repository = ? AND status = 'success'
		ORDER BY started_at DESC LIMIT 1`
	var sha string
	err := s.db.QueryRowContext(ctx, q, repository).Scan(&sha)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up last scan of %s: %w", repository, err)
	}
	return sha, nil
}

// RecordRun appends one repository scan to the history.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	const q = `
		INSERT OR REPLACE INTO scan_runs
			(scan_id, repository, commit_sha, scan_type, status, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		run.ScanID, run.Repository, run.CommitSHA, run.ScanType, run.Status,
		run.StartedAt.UTC(), run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("recording scan run for %s: %w", run.Repository, err)
	}
	return nil
}

// History returns the most recent runs for a repository, newest first.
func (s *Store) History(ctx context.Context, repository string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
		SELECT scan_id, repository, commit_sha, scan_type, status, started_at, duration_ms
		FROM scan_runs
		WHERE repository = ?
		ORDER BY started_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, repository, limit)
	if err != nil {
		return nil, fmt.Errorf("loading scan history of %s: %w", repository, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMS int64
		if err := rows.Scan(&r.ScanID, &r.Repository, &r.CommitSHA, &r.ScanType, &r.Status, &r.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scan history: %w", err)
	}
	return runs, nil
}
