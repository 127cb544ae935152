// Package generate builds the route pages and the sitemap from the train
// table.
package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/railbookingdate/traindays/pkg/routes"
	"github.com/railbookingdate/traindays/pkg/site"
	"github.com/railbookingdate/traindays/pkg/sitemap"
	"github.com/railbookingdate/traindays/pkg/templating"
)

// Row error policies.
const (
	OnRowErrorSkip  = "skip"
	OnRowErrorAbort = "abort"
)

// Config holds the generator's own settings.
type Config struct {
	// TrainsTable is the train table path, relative to the site root unless absolute.
	TrainsTable string `json:"trains_table"`

	// Delimiter is the table's field separator. Empty means a comma.
	Delimiter string `json:"delimiter"`

	// OnRowError is "skip" to drop and log bad rows, or "abort" to stop
	// before writing anything when any row is bad.
	OnRowError string `json:"on_row_error"`
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() *Config {
	return &Config{
		TrainsTable: "trains.csv",
		Delimiter:   ",",
		OnRowError:  OnRowErrorSkip,
	}
}

// PageResult describes one written route page.
type PageResult struct {
	Filename string
	Route    routes.RouteKey
	Trains   int
}

// Result summarizes a generation run.
type Result struct {
	Mapping     routes.ColumnMapping
	RowsRead    int
	RowErrors   routes.RowErrors
	Pages       []PageResult
	SitemapURLs int
	OutputDir   string
	SitemapPath string
}

// Generator turns the train table into route pages and a sitemap.
type Generator struct {
	site   *site.Config
	config *Config
	tm     *templating.TemplateManager
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerator returns a Generator. now stamps the sitemap; nil means time.Now.
func NewGenerator(siteCfg *site.Config, config *Config, tm *templating.TemplateManager, logger *slog.Logger, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		site:   siteCfg,
		config: config,
		tm:     tm,
		logger: logger,
		now:    now,
	}
}

// Run reads the table, replaces the route page directory, and rewrites the
// sitemap. When the row policy is abort and any row is bad, the returned
// error is the table's routes.RowErrors and nothing is written.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	tablePath := g.config.TrainsTable
	if !filepath.IsAbs(tablePath) {
		tablePath = g.site.Path(tablePath)
	}

	g.logger.Info("Reading train table", "path", tablePath)
	table, err := g.readTable(tablePath)
	if err != nil {
		return nil, err
	}
	g.logger.Info("Mapped table columns",
		"number", table.Mapping[routes.ColumnNumber],
		"name", table.Mapping[routes.ColumnName],
		"origin", table.Mapping[routes.ColumnOrigin],
		"destination", table.Mapping[routes.ColumnDestination])

	result := &Result{
		Mapping:     table.Mapping,
		RowsRead:    len(table.Records) + len(table.Errors),
		RowErrors:   table.Errors,
		OutputDir:   g.site.Path(g.site.TrainPagesDir),
		SitemapPath: g.site.Path(g.site.SitemapPath),
	}

	for _, rowErr := range table.Errors {
		g.logger.Warn("Rejected table row", "row", rowErr.Row, "column", string(rowErr.Column), "reason", rowErr.Reason)
	}
	if len(table.Errors) > 0 && g.config.OnRowError == OnRowErrorAbort {
		return result, table.Errors
	}

	groups := mergeFilenameCollisions(routes.Group(table.Records), g.logger)

	if err = g.writePages(ctx, groups, result); err != nil {
		return result, err
	}

	if err = g.writeSitemap(groups, result); err != nil {
		return result, err
	}

	g.logger.Info("Generation complete",
		"pages", len(result.Pages),
		"rows", result.RowsRead,
		"rejected", len(result.RowErrors),
		"sitemap_urls", result.SitemapURLs)
	return result, nil
}

func (g *Generator) readTable(path string) (*routes.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open train table: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var opts routes.TableOptions
	if g.config.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(g.config.Delimiter)
		if size != len(g.config.Delimiter) {
			return nil, fmt.Errorf("delimiter %q must be a single character", g.config.Delimiter)
		}
		opts.Comma = r
	}

	table, err := routes.ParseTable(f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse train table %s: %w", path, err)
	}
	return table, nil
}

// mergeFilenameCollisions folds groups whose station names differ but slugify
// identically into the first of them, so no page overwrites another.
func mergeFilenameCollisions(groups []routes.RouteGroup, logger *slog.Logger) []routes.RouteGroup {
	byFilename := make(map[string]int, len(groups))
	merged := make([]routes.RouteGroup, 0, len(groups))
	for _, group := range groups {
		name := group.Filename()
		if i, ok := byFilename[name]; ok {
			logger.Warn("Routes share a page filename, merging",
				"filename", name, "kept", merged[i].Key.String(), "merged", group.Key.String())
			merged[i].Trains = append(merged[i].Trains, group.Trains...)
			continue
		}
		byFilename[name] = len(merged)
		merged = append(merged, group)
	}
	return merged
}

// writePages renders every group into a staging directory next to the
// output directory and swaps it into place once all pages are written.
func (g *Generator) writePages(ctx context.Context, groups []routes.RouteGroup, result *Result) error {
	outDir := result.OutputDir
	parent := filepath.Dir(outDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", parent, err)
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(outDir)+".staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	swapped := false
	defer func() {
		if !swapped {
			_ = os.RemoveAll(staging)
		}
	}()
	if err = os.Chmod(staging, 0755); err != nil {
		return fmt.Errorf("failed to set staging directory permissions: %w", err)
	}

	var buf bytes.Buffer
	for _, group := range groups {
		if err = ctx.Err(); err != nil {
			return err
		}

		buf.Reset()
		if err = g.tm.RenderRoutePage(&buf, newRoutePage(g.site, group)); err != nil {
			return fmt.Errorf("failed to render %s: %w", group.Key, err)
		}

		filename := group.Filename()
		if err = os.WriteFile(filepath.Join(staging, filename), buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
		g.logger.Debug("Generated route page", "file", filename, "trains", len(group.Trains))
		result.Pages = append(result.Pages, PageResult{Filename: filename, Route: group.Key, Trains: len(group.Trains)})
	}

	if err = swapDir(staging, outDir); err != nil {
		return err
	}
	swapped = true
	return nil
}

// swapDir replaces dst with src. The previous dst is moved aside first and
// restored if the final rename fails.
func swapDir(src, dst string) error {
	backup := src + ".old"
	hadOld := true
	if err := os.Rename(dst, backup); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to move old output aside: %w", err)
		}
		hadOld = false
	}

	if err := os.Rename(src, dst); err != nil {
		if hadOld {
			_ = os.Rename(backup, dst)
		}
		return fmt.Errorf("failed to move new output into place: %w", err)
	}

	if hadOld {
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("failed to remove old output: %w", err)
		}
	}
	return nil
}

func (g *Generator) writeSitemap(groups []routes.RouteGroup, result *Result) error {
	builder := sitemap.NewBuilder(g.now())
	for _, page := range g.site.StaticPages {
		if err := builder.Add(g.site.CanonicalURL(page.Path), page.Priority, page.ChangeFreq); err != nil {
			return err
		}
	}
	for _, group := range groups {
		loc := g.site.CanonicalURL(g.site.TrainPagePath(group.Filename()))
		if err := builder.Add(loc, g.site.RoutePriority, g.site.RouteChangeFreq); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(result.SitemapPath), 0755); err != nil {
		return fmt.Errorf("failed to create sitemap directory: %w", err)
	}
	g.logger.Info("Writing sitemap", "path", result.SitemapPath, "urls", builder.Len())
	if err := builder.WriteFile(result.SitemapPath); err != nil {
		return err
	}
	result.SitemapURLs = builder.Len()
	return nil
}
