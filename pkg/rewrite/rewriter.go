// Package rewrite applies in-place edits to already published HTML pages:
// canonical links, navigation and footer blocks, and the navigation
// stylesheet. Every edit converges, so running a job over its own output
// changes nothing.
package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"regexp"
	"runtime"
	"strings"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/railbookingdate/traindays/pkg/site"
	"github.com/railbookingdate/traindays/pkg/templating"
)

// Edit names one kind of change the Rewriter can make.
type Edit string

const (
	EditCanonical  Edit = "canonical"
	EditNavigation Edit = "navigation"
	EditFooter     Edit = "footer"
	EditStylesheet Edit = "stylesheet"
)

// AllEdits is the full edit set, in the order edits are applied.
var AllEdits = []Edit{EditCanonical, EditNavigation, EditFooter, EditStylesheet}

// Config holds the rewriter settings.
type Config struct {
	// Workers bounds how many files are processed at once. Zero or less
	// means GOMAXPROCS.
	Workers int `json:"workers"`

	// PagesDir is scanned recursively by the canonical job.
	PagesDir string `json:"pages_dir"`

	// NavMarkers are the class values of navigation blocks to replace.
	NavMarkers []string `json:"nav_markers"`

	// FooterMarker is the class value of the footer block to replace.
	FooterMarker string `json:"footer_marker"`
}

// DefaultConfig returns the rewriter defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:      0,
		PagesDir:     "pages",
		NavMarkers:   []string{"main-nav", "nav-links"},
		FooterMarker: "site-footer",
	}
}

// Warning records an edit skipped for lack of an anchor.
type Warning struct {
	File   string
	Edit   Edit
	Reason string
}

// FileResult is the outcome of rewriting one file.
type FileResult struct {
	File     string
	Changed  bool
	Applied  []Edit
	Warnings []Warning
}

// Result is the outcome of a rewrite job. Files are in input order.
type Result struct {
	Files    []FileResult
	Changed  int
	Warnings []Warning
}

// Rewriter applies a fixed set of edits to pages under the site root.
type Rewriter struct {
	site   *site.Config
	config *Config
	tm     *templating.TemplateManager
	logger *slog.Logger
	edits  []Edit

	navPattern    *regexp.Regexp
	footerPattern *regexp.Regexp
}

// NewRewriter returns a Rewriter applying edits, or AllEdits when none are given.
func NewRewriter(siteCfg *site.Config, config *Config, tm *templating.TemplateManager, logger *slog.Logger, edits ...Edit) (*Rewriter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if len(edits) == 0 {
		edits = AllEdits
	}
	for _, e := range edits {
		switch e {
		case EditCanonical, EditNavigation, EditFooter, EditStylesheet:
		default:
			return nil, fmt.Errorf("unknown edit %q", e)
		}
	}

	r := &Rewriter{
		site:   siteCfg,
		config: config,
		tm:     tm,
		logger: logger,
		edits:  edits,
	}

	if len(config.NavMarkers) > 0 {
		quoted := make([]string, len(config.NavMarkers))
		for i, m := range config.NavMarkers {
			quoted[i] = regexp.QuoteMeta(m)
		}
		r.navPattern = regexp.MustCompile(`(?s)<nav class="(?:` + strings.Join(quoted, "|") + `)">.*?</nav>`)
	}
	if config.FooterMarker != "" {
		r.footerPattern = regexp.MustCompile(`(?s)<footer class="` + regexp.QuoteMeta(config.FooterMarker) + `">.*?</footer>`)
	}
	return r, nil
}

// Edits returns the edits this Rewriter applies.
func (r *Rewriter) Edits() []Edit {
	return append([]Edit(nil), r.edits...)
}

// Run rewrites files, given as paths relative to the site root. A read,
// render or write failure stops the job; anchor misses only add warnings.
func (r *Rewriter) Run(ctx context.Context, files []string) (*Result, error) {
	workers := r.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]FileResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.RewriteFile(rel)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Files: results}
	for _, res := range results {
		if res.Changed {
			result.Changed++
		}
		result.Warnings = append(result.Warnings, res.Warnings...)
	}
	r.logger.Info("Rewrite complete", "files", len(files), "changed", result.Changed, "warnings", len(result.Warnings))
	return result, nil
}

// RewriteFile edits one file in memory and replaces it atomically when the
// content changed.
func (r *Rewriter) RewriteFile(rel string) (FileResult, error) {
	res := FileResult{File: rel}
	filePath := r.site.Path(rel)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", rel, err)
	}

	before := string(data)
	after, applied, warnings, err := r.Apply(rel, before)
	if err != nil {
		return res, err
	}
	res.Applied = applied
	res.Warnings = warnings
	for _, w := range warnings {
		r.logger.Warn("Skipped edit", "file", w.File, "edit", string(w.Edit), "reason", w.Reason)
	}

	if after == before {
		r.logger.Debug("File unchanged", "file", rel)
		return res, nil
	}
	if err = atomic.WriteFile(filePath, strings.NewReader(after)); err != nil {
		return res, fmt.Errorf("failed to write %s: %w", rel, err)
	}
	res.Changed = true
	r.logger.Debug("File rewritten", "file", rel, "edits", len(applied))
	return res, nil
}

// Apply runs the configured edits over content, which belongs to the page
// at rel. It returns the new content, the edits that changed something and
// the edits skipped for a missing anchor.
func (r *Rewriter) Apply(rel, content string) (string, []Edit, []Warning, error) {
	relRoot := site.RelRoot(rel)
	var applied []Edit
	var warnings []Warning

	for _, e := range r.edits {
		var (
			next   string
			reason string
			err    error
		)
		switch e {
		case EditCanonical:
			next, reason, err = r.editCanonical(rel, content)
		case EditNavigation:
			next, reason, err = r.editNavigation(relRoot, content)
		case EditFooter:
			next, reason, err = r.editFooter(relRoot, content)
		case EditStylesheet:
			next, reason, err = r.editStylesheet(relRoot, content)
		}
		if err != nil {
			return content, nil, nil, fmt.Errorf("%s edit of %s: %w", e, rel, err)
		}
		if reason != "" {
			warnings = append(warnings, Warning{File: rel, Edit: e, Reason: reason})
			continue
		}
		if next != content {
			applied = append(applied, e)
			content = next
		}
	}
	return content, applied, warnings, nil
}

func (r *Rewriter) editCanonical(rel, content string) (string, string, error) {
	tag, err := r.tm.CanonicalTag(r.site.CanonicalURL(rel))
	if err != nil {
		return content, "", err
	}
	next, ok := setCanonical(content, tag)
	if !ok {
		return content, "no </title> or <head> to anchor the canonical link", nil
	}
	return next, "", nil
}

func (r *Rewriter) editNavigation(relRoot, content string) (string, string, error) {
	if r.navPattern == nil {
		return content, "no navigation markers configured", nil
	}
	if !r.navPattern.MatchString(content) {
		return content, "no navigation block", nil
	}
	block, err := r.tm.NavigationBlock(templating.NavigationData(r.site, relRoot))
	if err != nil {
		return content, "", err
	}
	return r.navPattern.ReplaceAllLiteralString(content, block), "", nil
}

func (r *Rewriter) editFooter(relRoot, content string) (string, string, error) {
	if r.footerPattern == nil {
		return content, "no footer marker configured", nil
	}
	if !r.footerPattern.MatchString(content) {
		return content, "no footer block", nil
	}
	block, err := r.tm.FooterBlock(templating.FooterData(r.site, relRoot))
	if err != nil {
		return content, "", err
	}
	return r.footerPattern.ReplaceAllLiteralString(content, block), "", nil
}

func (r *Rewriter) editStylesheet(relRoot, content string) (string, string, error) {
	if strings.Contains(content, path.Base(r.site.Stylesheet)) {
		return content, "", nil
	}
	idx := strings.Index(content, "</head>")
	if idx < 0 {
		return content, "no </head> to anchor the stylesheet link", nil
	}
	tag, err := r.tm.StylesheetTag(relRoot + strings.TrimPrefix(r.site.Stylesheet, "/"))
	if err != nil {
		return content, "", err
	}
	return content[:idx] + "    " + tag + "\n" + content[idx:], "", nil
}
