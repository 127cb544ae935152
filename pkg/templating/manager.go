package templating

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/railbookingdate/traindays/pkg/site"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// BlockData is the input of the navigation and footer blocks.
type BlockData struct {
	// RelRoot leads from the page's directory back to the site root.
	RelRoot   string
	Links     []site.Link
	Copyright string
}

// NavigationData returns the navigation block input for a page whose
// directory is relRoot away from the site root.
func NavigationData(cfg *site.Config, relRoot string) BlockData {
	return BlockData{RelRoot: relRoot, Links: cfg.NavLinks}
}

// FooterData returns the footer block input for a page whose directory is
// relRoot away from the site root.
func FooterData(cfg *site.Config, relRoot string) BlockData {
	return BlockData{RelRoot: relRoot, Links: cfg.FooterLinks, Copyright: cfg.Copyright}
}

// TemplateManager is the central controller for the templating engine.
// It manages the template set, configuration and function map, and is
// responsible for loading, parsing, and executing templates in a
// concurrent-safe manner.
// All methods are concurrent-safe.
type TemplateManager struct {
	logger         *slog.Logger
	config         *TemplateConfig
	templates     *template.Template
	templateNames []string
	funcMap       template.FuncMap
	mu            sync.RWMutex
}

// NewTemplateManager creates, initializes, and returns a new TemplateManager.
// It performs an initial Refresh to load the embedded templates and any
// overrides from config.TemplateDir.
func NewTemplateManager(logger *slog.Logger, config *TemplateConfig) (*TemplateManager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	tm := &TemplateManager{
		logger: logger,
		config: config,
	}
	tm.funcMap = tm.makeFuncMap()

	if err := tm.Refresh(); err != nil {
		return nil, err
	}

	logger.Debug("Template manager initialized", "templates", len(tm.templateNames))
	return tm, nil
}

func (tm *TemplateManager) makeFuncMap() template.FuncMap {
	return template.FuncMap{
		// Links (from funcs_links.go)
		"link": link,

		// Structured data (from funcs_structure.go)
		"jsonLD": jsonLD,

		// Simple (from funcs_simple.go)
		"plural": plural,
	}
}

// SetConfig applies a new configuration. Call Refresh afterwards to load
// templates from a changed TemplateDir.
func (tm *TemplateManager) SetConfig(config *TemplateConfig) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.config = config
}

// Refresh reloads the embedded templates and then the override directory,
// if one is configured.
func (tm *TemplateManager) Refresh() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	parsed, err := template.New("").Funcs(tm.funcMap).ParseFS(embeddedTemplates, "templates/*.tmpl.html", "templates/*.part.html")
	if err != nil {
		tm.logger.Error("failed to parse embedded templates", "error", err)
		return err
	}

	if tm.config.TemplateDir != "" {
		for _, suffix := range []string{"*.tmpl.html", "*.part.html"} {
			filePattern := filepath.Join(tm.config.TemplateDir, suffix)
			tm.logger.Debug("Loading template overrides...", "pattern", filePattern)

			overridden, err := parsed.ParseGlob(filePattern)
			if err != nil {
				if !strings.Contains(err.Error(), "pattern matches no files") {
					tm.logger.Error("failed to parse template overrides", "pattern", filePattern, "error", err)
					return err
				}
				continue
			}
			parsed = overridden
		}
	}

	var names []string
	for _, t := range parsed.Templates() {
		// The root template has no name, and partial definitions are not pages.
		if strings.HasSuffix(t.Name(), ".tmpl.html") {
			names = append(names, t.Name())
		}
	}
	if len(names) == 0 {
		tm.logger.Warn("No page templates loaded")
	}

	tm.templates = parsed
	tm.templateNames = names
	return nil
}

// Execute renders a specific template by name, writing the output to w.
func (tm *TemplateManager) Execute(w io.Writer, name string, data any) error {
	if name == "" {
		return fmt.Errorf("template name is empty")
	}
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templates.ExecuteTemplate(w, name, data)
}

// RenderRoutePage renders the configured route page template.
func (tm *TemplateManager) RenderRoutePage(w io.Writer, data any) error {
	return tm.Execute(w, tm.GetConfig().RoutePageTemplate, data)
}

// RenderBlock renders a named block to a string with surrounding whitespace
// trimmed, the form in which it replaces stale markup.
func (tm *TemplateManager) RenderBlock(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := tm.Execute(&buf, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// NavigationBlock renders the configured navigation block.
func (tm *TemplateManager) NavigationBlock(data BlockData) (string, error) {
	return tm.RenderBlock(tm.GetConfig().NavigationBlock, data)
}

// FooterBlock renders the configured footer block.
func (tm *TemplateManager) FooterBlock(data BlockData) (string, error) {
	return tm.RenderBlock(tm.GetConfig().FooterBlock, data)
}

// CanonicalTag renders the canonical link tag for url.
func (tm *TemplateManager) CanonicalTag(url string) (string, error) {
	return tm.RenderBlock(tm.GetConfig().CanonicalBlock, url)
}

// StylesheetTag renders a stylesheet link tag for href.
func (tm *TemplateManager) StylesheetTag(href string) (string, error) {
	return tm.RenderBlock(tm.GetConfig().StylesheetBlock, href)
}

// GetConfig returns a copy of the current configuration.
func (tm *TemplateManager) GetConfig() TemplateConfig {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return *tm.config
}

// GetTemplateNames returns the names of the loaded page templates.
func (tm *TemplateManager) GetTemplateNames() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	names := make([]string, len(tm.templateNames))
	copy(names, tm.templateNames)
	return names
}
