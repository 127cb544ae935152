package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/railbookingdate/traindays/pkg/audit"
	"github.com/railbookingdate/traindays/pkg/generate"
	"github.com/railbookingdate/traindays/pkg/metrics"
	"github.com/railbookingdate/traindays/pkg/report"
	"github.com/railbookingdate/traindays/pkg/rewrite"
	"github.com/railbookingdate/traindays/pkg/templating"
)

// Commands accepted on the command line.
const (
	cmdGenerate  = "generate"
	cmdRewrite   = "rewrite"
	cmdCanonical = "canonical"
	cmdAudit     = "audit"
	cmdAll       = "all"
	cmdHistory   = "history"
)

var commands = []string{cmdGenerate, cmdRewrite, cmdCanonical, cmdAudit, cmdAll, cmdHistory}

// errAuditFindings marks an audit that completed but found problems.
var errAuditFindings = errors.New("audit found problems")

// App holds everything a command needs.
type App struct {
	config  *Config
	logger  *slog.Logger
	out     io.Writer
	tm      *templating.TemplateManager
	db      *sql.DB
	store   *report.Store
	metrics *metrics.Collector
	now     func() time.Time
}

// NewApp builds the template manager, and the run ledger when one is
// configured.
func NewApp(config *Config, logger *slog.Logger, out io.Writer) (*App, error) {
	tm, err := templating.NewTemplateManager(logger, config.Templates)
	if err != nil {
		return nil, fmt.Errorf("failed to create template manager: %w", err)
	}

	app := &App{
		config:  config,
		logger:  logger,
		out:     out,
		tm:      tm,
		metrics: metrics.NewCollector(),
		now:     time.Now,
	}

	if config.ReportDatabasePath != "" {
		db, err := initDB(config.ReportDatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		store, err := report.NewStore(db, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		app.db = db
		app.store = store
	}
	return app, nil
}

// openLedger creates the database's directory and opens it with driver.
func openLedger(driver, dataSource string) (*sql.DB, error) {
	file, _, _ := strings.Cut(strings.TrimPrefix(dataSource, "file:"), "?")
	if file != "" && file != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serializes them anyway.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Close releases the ledger database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	a.logger.Debug("Closing database connection.")
	return a.db.Close()
}

// Run executes one command.
func (a *App) Run(ctx context.Context, command string, historyLimit int) error {
	switch command {
	case cmdGenerate:
		return a.generate(ctx)
	case cmdRewrite:
		return a.rewriteTrainPages(ctx)
	case cmdCanonical:
		return a.canonical(ctx)
	case cmdAudit:
		return a.audit(ctx)
	case cmdAll:
		for _, step := range []func(context.Context) error{a.generate, a.rewriteTrainPages, a.canonical, a.audit} {
			if err := step(ctx); err != nil {
				return err
			}
		}
		return nil
	case cmdHistory:
		return a.history(ctx, historyLimit)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

// runJob wraps fn with a ledger entry and job metrics.
func (a *App) runJob(ctx context.Context, job string, fn func(ctx context.Context, runID int64) (string, error)) error {
	started := a.now()
	a.logger.Info("Starting job", "job", job)

	var runID int64
	if a.store != nil {
		id, err := a.store.BeginRun(ctx, job, started)
		if err != nil {
			a.logger.Error("Failed to open ledger entry", "job", job, "error", err)
		} else {
			runID = id
		}
	}

	summary, err := fn(ctx, runID)
	a.metrics.ObserveJob(job, started, err)

	if runID != 0 {
		if ferr := a.store.FinishRun(context.WithoutCancel(ctx), runID, a.now(), summary, err); ferr != nil {
			a.logger.Error("Failed to close ledger entry", "job", job, "run_id", runID, "error", ferr)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", job, err)
	}
	a.logger.Info("Job finished", "job", job, "summary", summary, "duration", time.Since(started))
	return nil
}

func (a *App) generate(ctx context.Context) error {
	return a.runJob(ctx, cmdGenerate, func(ctx context.Context, runID int64) (string, error) {
		gen := generate.NewGenerator(a.config.Site, a.config.Generate, a.tm, a.logger, a.now)
		result, err := gen.Run(ctx)
		if result != nil {
			a.metrics.RowsRead.Add(float64(result.RowsRead))
			a.metrics.RowsRejected.Add(float64(len(result.RowErrors)))
			a.metrics.Pages.Add(float64(len(result.Pages)))
			a.metrics.Routes.Set(float64(len(result.Pages)))
			a.metrics.SitemapURLs.Set(float64(result.SitemapURLs))
			a.recordGenerate(ctx, runID, result)
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d pages from %d rows, %d rejected", len(result.Pages), result.RowsRead, len(result.RowErrors)), nil
	})
}

func (a *App) recordGenerate(ctx context.Context, runID int64, result *generate.Result) {
	if runID == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	rowErrors := make([]report.RowError, len(result.RowErrors))
	for i, e := range result.RowErrors {
		rowErrors[i] = report.RowError{Row: e.Row, Column: string(e.Column), Reason: e.Reason}
	}
	if err := a.store.RecordRowErrors(ctx, runID, rowErrors); err != nil {
		a.logger.Error("Failed to record row errors", "run_id", runID, "error", err)
	}

	pages := make([]report.Page, len(result.Pages))
	for i, p := range result.Pages {
		pages[i] = report.Page{Filename: p.Filename, Route: p.Route.String(), Trains: p.Trains}
	}
	if err := a.store.RecordPages(ctx, runID, pages); err != nil {
		a.logger.Error("Failed to record pages", "run_id", runID, "error", err)
	}
}

// rewriteTrainPages applies every edit to the route pages.
func (a *App) rewriteTrainPages(ctx context.Context) error {
	return a.rewrite(ctx, cmdRewrite, func() ([]string, error) {
		return rewrite.TrainPages(a.config.Site)
	}, rewrite.AllEdits...)
}

// canonical fixes canonical links across the root index and pages tree.
func (a *App) canonical(ctx context.Context) error {
	return a.rewrite(ctx, cmdCanonical, func() ([]string, error) {
		return rewrite.SitePages(a.config.Site, a.config.Rewrite.PagesDir)
	}, rewrite.EditCanonical)
}

func (a *App) rewrite(ctx context.Context, job string, list func() ([]string, error), edits ...rewrite.Edit) error {
	return a.runJob(ctx, job, func(ctx context.Context, runID int64) (string, error) {
		files, err := list()
		if err != nil {
			return "", fmt.Errorf("failed to list pages: %w", err)
		}
		r, err := rewrite.NewRewriter(a.config.Site, a.config.Rewrite, a.tm, a.logger, edits...)
		if err != nil {
			return "", err
		}
		a.logger.Info("Found files to update", "job", job, "files", len(files), "edits", r.Edits())
		result, err := r.Run(ctx, files)
		if err != nil {
			return "", err
		}

		a.metrics.FilesScanned.Add(float64(len(files)))
		a.metrics.FilesChanged.Add(float64(result.Changed))
		for _, f := range result.Files {
			for _, e := range f.Applied {
				a.metrics.EditsApplied.WithLabelValues(string(e)).Inc()
			}
		}
		warnings := make([]report.Warning, len(result.Warnings))
		for i, w := range result.Warnings {
			a.metrics.EditWarnings.WithLabelValues(string(w.Edit)).Inc()
			warnings[i] = report.Warning{File: w.File, Kind: string(w.Edit), Detail: w.Reason}
		}
		if runID != 0 {
			if err = a.store.RecordWarnings(context.WithoutCancel(ctx), runID, warnings); err != nil {
				a.logger.Error("Failed to record warnings", "run_id", runID, "error", err)
			}
		}

		return fmt.Sprintf("%d of %d files changed, %d warnings", result.Changed, len(files), len(result.Warnings)), nil
	})
}

// audit checks the root index and the pages tree, printing each finding.
func (a *App) audit(ctx context.Context) error {
	return a.runJob(ctx, cmdAudit, func(ctx context.Context, runID int64) (string, error) {
		files, err := rewrite.SitePages(a.config.Site, a.config.Rewrite.PagesDir)
		if err != nil {
			return "", fmt.Errorf("failed to list pages: %w", err)
		}

		findings, err := audit.NewAuditor(a.config.Site, a.config.Rewrite, a.logger).Audit(ctx, files)
		if err != nil {
			return "", err
		}

		warnings := make([]report.Warning, len(findings))
		for i, f := range findings {
			a.metrics.AuditFindings.WithLabelValues(string(f.Check)).Inc()
			warnings[i] = report.Warning{File: f.File, Kind: string(f.Check), Detail: f.Detail}
			_, _ = fmt.Fprintln(a.out, f.String())
		}
		if runID != 0 {
			if err = a.store.RecordWarnings(context.WithoutCancel(ctx), runID, warnings); err != nil {
				a.logger.Error("Failed to record findings", "run_id", runID, "error", err)
			}
		}

		summary := fmt.Sprintf("%d files, %d findings", len(files), len(findings))
		if len(findings) > 0 {
			return summary, errAuditFindings
		}
		return summary, nil
	})
}

// history prints the most recent ledger entries, newest first.
func (a *App) history(ctx context.Context, limit int) error {
	if a.store == nil {
		return errors.New("the run ledger is disabled (report_database_path is empty)")
	}
	runs, err := a.store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	for _, run := range runs {
		finished := "-"
		if run.FinishedAt.Valid {
			finished = run.FinishedAt.Time.Local().Format(time.DateTime)
		}
		_, _ = fmt.Fprintf(a.out, "%d\t%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.Job, run.Status, run.StartedAt.Local().Format(time.DateTime), finished, run.Summary)
	}
	return nil
}

// WriteMetrics writes the collected metrics when a textfile is configured.
func (a *App) WriteMetrics() error {
	if a.config.MetricsTextfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.config.MetricsTextfile), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	return a.metrics.WriteTextfile(a.config.MetricsTextfile)
}
