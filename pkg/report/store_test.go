package report

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestStore opens a file-backed SQLite database in a temp dir.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "report.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestSetupSchema_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := SetupSchema(store.db); err != nil {
		t.Fatalf("second SetupSchema() failed: %v", err)
	}
}

func TestStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	runID, err := store.BeginRun(ctx, "generate", started)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	if err = store.RecordRowErrors(ctx, runID, []RowError{
		{Row: 3, Column: "origin", Reason: "empty value"},
		{Row: 9, Column: "destination", Reason: "missing value"},
	}); err != nil {
		t.Fatalf("RecordRowErrors() failed: %v", err)
	}
	if err = store.RecordPages(ctx, runID, []Page{
		{Filename: "train-between-delhi-mumbai.html", Route: "DELHI - MUMBAI", Trains: 2},
	}); err != nil {
		t.Fatalf("RecordPages() failed: %v", err)
	}
	if err = store.FinishRun(ctx, runID, started.Add(time.Second), "1 page", nil); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns() failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Job != "generate" || run.Status != StatusOK || run.Summary != "1 page" || !run.FinishedAt.Valid {
		t.Errorf("unexpected run: %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", run.StartedAt, started)
	}

	if n, _ := store.CountRowErrors(ctx, runID); n != 2 {
		t.Errorf("expected 2 row errors, got %d", n)
	}
	if n, _ := store.CountPages(ctx, runID); n != 1 {
		t.Errorf("expected 1 page, got %d", n)
	}
}

func TestStore_FailedRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	runID, err := store.BeginRun(ctx, "rewrite", time.Now())
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	if err = store.RecordWarnings(ctx, runID, []Warning{
		{File: "pages/trains/a.html", Kind: "canonical", Detail: "no <title> or <head>"},
	}); err != nil {
		t.Fatalf("RecordWarnings() failed: %v", err)
	}
	if err = store.FinishRun(ctx, runID, time.Now(), "3 files", errors.New("permission denied")); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}

	runs, _ := store.RecentRuns(ctx, 1)
	if runs[0].Status != StatusFailed || !strings.Contains(runs[0].Summary, "permission denied") {
		t.Errorf("unexpected failed run: %+v", runs[0])
	}

	warnings, err := store.RunWarnings(ctx, runID)
	if err != nil {
		t.Fatalf("RunWarnings() failed: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Kind != "canonical" {
		t.Errorf("unexpected warnings: %+v", warnings)
	}
}

func TestStore_RecentRunsOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	for _, job := range []string{"generate", "rewrite", "audit"} {
		id, err := store.BeginRun(ctx, job, time.Now())
		if err != nil {
			t.Fatal(err)
		}
		_ = store.FinishRun(ctx, id, time.Now(), "", nil)
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Job != "audit" || runs[1].Job != "rewrite" {
		t.Errorf("expected newest runs first, got %+v", runs)
	}
}

func TestStore_EmptyBatches(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	if err := store.RecordWarnings(ctx, 1, nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}
