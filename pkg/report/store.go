// Package report keeps a SQLite ledger of every generator, rewriter and
// audit run: when it ran, how it ended, and the rows, files and warnings it
// produced.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      INTEGER PRIMARY KEY,
    job         TEXT NOT NULL,
    started_at  DATETIME NOT NULL,
    finished_at DATETIME,
    status      TEXT NOT NULL DEFAULT 'running',
    summary     TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS run_row_errors (
    run_id  INTEGER NOT NULL REFERENCES runs(run_id),
    row_num INTEGER NOT NULL,
    col     TEXT NOT NULL,
    reason  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_warnings (
    run_id INTEGER NOT NULL REFERENCES runs(run_id),
    file   TEXT NOT NULL,
    kind   TEXT NOT NULL,
    detail TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_pages (
    run_id   INTEGER NOT NULL REFERENCES runs(run_id),
    filename TEXT NOT NULL,
    route    TEXT NOT NULL,
    trains   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_job ON runs (job, started_at);
`

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Run is a single ledger entry.
type Run struct {
	ID         int64
	Job        string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	Summary    string
}

// RowError is a rejected table row attached to a run.
type RowError struct {
	Row    int
	Column string
	Reason string
}

// Warning is a per-file problem attached to a run: a skipped rewrite edit or
// an audit finding.
type Warning struct {
	File   string
	Kind   string
	Detail string
}

// Page is a generated route page attached to a run.
type Page struct {
	Filename string
	Route    string
	Trains   int
}

// Store records runs in a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// SetupSchema creates the ledger tables. It is idempotent.
func SetupSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// NewStore sets up the schema on db and returns a Store using it.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if err := SetupSchema(db); err != nil {
		return nil, fmt.Errorf("failed to setup report schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// BeginRun opens a ledger entry for job and returns its id.
func (s *Store) BeginRun(ctx context.Context, job string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (job, started_at, status) VALUES (?, ?, ?)`,
		job, startedAt.UTC(), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	s.logger.Debug("Run started", "run_id", id, "job", job)
	return id, nil
}

// FinishRun closes a ledger entry. A nil runErr marks the run ok.
func (s *Store) FinishRun(ctx context.Context, runID int64, finishedAt time.Time, summary string, runErr error) error {
	status := StatusOK
	if runErr != nil {
		status = StatusFailed
		if summary == "" {
			summary = runErr.Error()
		} else {
			summary = summary + ": " + runErr.Error()
		}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, summary = ? WHERE run_id = ?`,
		finishedAt.UTC(), status, summary, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	return nil
}

// RecordRowErrors attaches rejected rows to a run.
func (s *Store) RecordRowErrors(ctx context.Context, runID int64, rowErrors []RowError) error {
	return s.insertBatch(ctx, `INSERT INTO run_row_errors (run_id, row_num, col, reason) VALUES (?, ?, ?, ?)`,
		len(rowErrors), func(stmt *sql.Stmt, i int) error {
			re := rowErrors[i]
			_, err := stmt.ExecContext(ctx, runID, re.Row, re.Column, re.Reason)
			return err
		})
}

// RecordWarnings attaches per-file warnings to a run.
func (s *Store) RecordWarnings(ctx context.Context, runID int64, warnings []Warning) error {
	return s.insertBatch(ctx, `INSERT INTO run_warnings (run_id, file, kind, detail) VALUES (?, ?, ?, ?)`,
		len(warnings), func(stmt *sql.Stmt, i int) error {
			w := warnings[i]
			_, err := stmt.ExecContext(ctx, runID, w.File, w.Kind, w.Detail)
			return err
		})
}

// RecordPages attaches generated pages to a run.
func (s *Store) RecordPages(ctx context.Context, runID int64, pages []Page) error {
	return s.insertBatch(ctx, `INSERT INTO run_pages (run_id, filename, route, trains) VALUES (?, ?, ?, ?)`,
		len(pages), func(stmt *sql.Stmt, i int) error {
			p := pages[i]
			_, err := stmt.ExecContext(ctx, runID, p.Filename, p.Route, p.Trains)
			return err
		})
}

// insertBatch runs n inserts through one prepared statement in a single transaction.
func (s *Store) insertBatch(ctx context.Context, query string, n int, exec func(stmt *sql.Stmt, i int) error) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmt)

	for i := 0; i < n; i++ {
		if err = exec(stmt, i); err != nil {
			return fmt.Errorf("failed to insert item %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, job, started_at, finished_at, status, summary FROM runs ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var runs []Run
	for rows.Next() {
		var r Run
		if err = rows.Scan(&r.ID, &r.Job, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Summary); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunWarnings returns the warnings recorded for a run.
func (s *Store) RunWarnings(ctx context.Context, runID int64) ([]Warning, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file, kind, detail FROM run_warnings WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var warnings []Warning
	for rows.Next() {
		var w Warning
		if err = rows.Scan(&w.File, &w.Kind, &w.Detail); err != nil {
			return nil, err
		}
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// CountRowErrors returns the number of rejected rows recorded for a run.
func (s *Store) CountRowErrors(ctx context.Context, runID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_row_errors WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// CountPages returns the number of pages recorded for a run.
func (s *Store) CountPages(ctx context.Context, runID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_pages WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
