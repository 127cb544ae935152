// Package audit inspects published pages for the problems the rewriter
// exists to fix: missing or duplicated canonical links, stale navigation,
// doubled footers and a missing navigation stylesheet.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"runtime"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/railbookingdate/traindays/pkg/rewrite"
	"github.com/railbookingdate/traindays/pkg/site"
)

// Check identifies one audit rule.
type Check string

const (
	CheckCanonicalCount    Check = "canonical_count"
	CheckCanonicalURL      Check = "canonical_url"
	CheckDuplicateNav      Check = "duplicate_nav"
	CheckLegacyNav         Check = "legacy_nav"
	CheckDuplicateFooter   Check = "duplicate_footer"
	CheckMissingStylesheet Check = "missing_stylesheet"
)

// Finding is one problem found in one file.
type Finding struct {
	File   string
	Check  Check
	Detail string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: %s", f.File, f.Check, f.Detail)
}

// Auditor checks pages against the current site layout.
type Auditor struct {
	site    *site.Config
	config  *rewrite.Config
	logger  *slog.Logger
	workers int
}

// NewAuditor returns an Auditor. The first navigation marker in config is
// the current one, any others are legacy.
func NewAuditor(siteCfg *site.Config, config *rewrite.Config, logger *slog.Logger) *Auditor {
	if config == nil {
		config = rewrite.DefaultConfig()
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Auditor{site: siteCfg, config: config, logger: logger, workers: workers}
}

// Audit checks files, given relative to the site root, and returns the
// findings grouped by file in input order.
func (a *Auditor) Audit(ctx context.Context, files []string) ([]Finding, error) {
	perFile := make([][]Finding, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			findings, err := a.AuditFile(rel)
			if err != nil {
				return err
			}
			perFile[i] = findings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var findings []Finding
	for _, f := range perFile {
		findings = append(findings, f...)
	}
	a.logger.Info("Audit complete", "files", len(files), "findings", len(findings))
	return findings, nil
}

// AuditFile checks a single file.
func (a *Auditor) AuditFile(rel string) ([]Finding, error) {
	f, err := os.Open(a.site.Path(rel))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", rel, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rel, err)
	}

	findings := a.Inspect(rel, doc)
	for _, finding := range findings {
		a.logger.Debug("Audit finding", "file", rel, "check", string(finding.Check), "detail", finding.Detail)
	}
	return findings, nil
}

// Inspect runs every check over a parsed document.
func (a *Auditor) Inspect(rel string, doc *goquery.Document) []Finding {
	var findings []Finding
	add := func(check Check, detail string) {
		findings = append(findings, Finding{File: rel, Check: check, Detail: detail})
	}

	canonical := doc.Find(`link[rel="canonical"]`)
	switch canonical.Length() {
	case 1:
		want := a.site.CanonicalURL(rel)
		if href, _ := canonical.Attr("href"); href != want {
			add(CheckCanonicalURL, fmt.Sprintf("href %q, want %q", href, want))
		}
	default:
		add(CheckCanonicalCount, strconv.Itoa(canonical.Length())+" canonical links")
	}

	if len(a.config.NavMarkers) > 0 {
		if n := doc.Find("nav." + a.config.NavMarkers[0]).Length(); n > 1 {
			add(CheckDuplicateNav, strconv.Itoa(n)+" "+a.config.NavMarkers[0]+" blocks")
		}
		for _, legacy := range a.config.NavMarkers[1:] {
			if n := doc.Find("nav." + legacy).Length(); n > 0 {
				add(CheckLegacyNav, strconv.Itoa(n)+" "+legacy+" blocks")
			}
		}
	}

	if a.config.FooterMarker != "" {
		if n := doc.Find("footer." + a.config.FooterMarker).Length(); n > 1 {
			add(CheckDuplicateFooter, strconv.Itoa(n)+" "+a.config.FooterMarker+" blocks")
		}
	}

	stylesheet := path.Base(a.site.Stylesheet)
	found := false
	doc.Find(`link[rel="stylesheet"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		found = strings.HasSuffix(href, stylesheet)
		return !found
	})
	if !found {
		add(CheckMissingStylesheet, stylesheet+" is not linked")
	}

	return findings
}
