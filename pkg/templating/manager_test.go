package templating

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/railbookingdate/traindays/pkg/site"
)

// setupTestManager creates a TemplateManager whose override directory is a
// fresh temporary directory.
func setupTestManager(tb testing.TB) *TemplateManager {
	tb.Helper()

	config := DefaultConfig()
	config.TemplateDir = tb.TempDir()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm, err := NewTemplateManager(logger, config)
	if err != nil {
		tb.Fatalf("NewTemplateManager failed: %v", err)
	}
	return tm
}

func testBlockData() BlockData {
	return BlockData{
		RelRoot: "../../",
		Links: []site.Link{
			{Label: "Calculator", Path: "index.html"},
			{Label: "FAQ", Path: "pages/faq.html"},
		},
		Copyright: "© 2026 RailBookingDate",
	}
}

func TestNewTemplateManager(t *testing.T) {
	tm := setupTestManager(t)
	names := tm.GetTemplateNames()
	if len(names) != 1 || names[0] != "train_route.tmpl.html" {
		t.Errorf("expected only the embedded route template, got %v", names)
	}
}

func TestNewTemplateManager_NilConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm, err := NewTemplateManager(logger, nil)
	if err != nil {
		t.Fatalf("NewTemplateManager failed: %v", err)
	}
	if tm.GetConfig().RoutePageTemplate != "train_route.tmpl.html" {
		t.Error("nil config should fall back to defaults")
	}
}

func TestManager_Refresh(t *testing.T) {
	tm := setupTestManager(t)
	initialCount := len(tm.GetTemplateNames())

	newTmplPath := filepath.Join(tm.GetConfig().TemplateDir, "new.tmpl.html")
	if err := os.WriteFile(newTmplPath, []byte(`New Content`), 0644); err != nil {
		t.Fatalf("failed to write new template: %v", err)
	}

	if err := tm.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if got := len(tm.GetTemplateNames()); got != initialCount+1 {
		t.Errorf("expected %d templates after refresh, got %d", initialCount+1, got)
	}
}

func TestManager_RefreshOverridesPartial(t *testing.T) {
	tm := setupTestManager(t)

	override := `{{define "navigation"}}<nav class="main-nav"><a href="{{link .RelRoot "index.html"}}">Home</a></nav>{{end}}`
	path := filepath.Join(tm.GetConfig().TemplateDir, "custom.part.html")
	if err := os.WriteFile(path, []byte(override), 0644); err != nil {
		t.Fatalf("failed to write override partial: %v", err)
	}
	if err := tm.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	got, err := tm.NavigationBlock(testBlockData())
	if err != nil {
		t.Fatalf("NavigationBlock failed: %v", err)
	}
	want := `<nav class="main-nav"><a href="../../index.html">Home</a></nav>`
	if got != want {
		t.Errorf("override not applied:\n got: %s\nwant: %s", got, want)
	}
}

func TestManager_RefreshBadOverride(t *testing.T) {
	tm := setupTestManager(t)
	path := filepath.Join(tm.GetConfig().TemplateDir, "broken.tmpl.html")
	if err := os.WriteFile(path, []byte(`{{if}}`), 0644); err != nil {
		t.Fatalf("failed to write broken template: %v", err)
	}
	if err := tm.Refresh(); err == nil {
		t.Fatal("expected Refresh to fail on a broken template")
	}
}

func TestManager_Execute(t *testing.T) {
	tm := setupTestManager(t)
	var buf bytes.Buffer

	err := tm.Execute(&buf, "nonexistent.tmpl.html", nil)
	if err == nil {
		t.Fatal("expected an error for non-existent template, but got nil")
	}
	expectedErrString := `html/template: "nonexistent.tmpl.html" is undefined`
	if !strings.Contains(err.Error(), expectedErrString) {
		t.Errorf("error message mismatch: got '%v', expected to contain '%s'", err, expectedErrString)
	}

	if err = tm.Execute(&buf, "", nil); err == nil {
		t.Error("expected an error for an empty template name")
	}
}

func TestManager_NavigationBlock(t *testing.T) {
	tm := setupTestManager(t)
	got, err := tm.NavigationBlock(testBlockData())
	if err != nil {
		t.Fatalf("NavigationBlock failed: %v", err)
	}
	want := `<nav class="main-nav">
            <a href="../../index.html">Calculator</a>
            <a href="../../pages/faq.html">FAQ</a>
        </nav>`
	if got != want {
		t.Errorf("unexpected navigation block:\n got: %s\nwant: %s", got, want)
	}
}

func TestManager_FooterBlock(t *testing.T) {
	tm := setupTestManager(t)
	got, err := tm.FooterBlock(testBlockData())
	if err != nil {
		t.Fatalf("FooterBlock failed: %v", err)
	}
	if !strings.HasPrefix(got, `<footer class="site-footer">`) || !strings.HasSuffix(got, `</footer>`) {
		t.Errorf("footer block not trimmed to its element: %q", got)
	}
	if !strings.Contains(got, "<p>© 2026 RailBookingDate</p>") {
		t.Errorf("footer block missing copyright: %s", got)
	}
	if !strings.Contains(got, `<nav class="site-footer-nav">`) {
		t.Errorf("footer block missing its link list: %s", got)
	}
}

func TestManager_LinkTags(t *testing.T) {
	tm := setupTestManager(t)

	got, err := tm.CanonicalTag("https://railbookingdate.com/pages/faq.html")
	if err != nil {
		t.Fatalf("CanonicalTag failed: %v", err)
	}
	if want := `<link rel="canonical" href="https://railbookingdate.com/pages/faq.html">`; got != want {
		t.Errorf("CanonicalTag() = %s, want %s", got, want)
	}

	got, err = tm.CanonicalTag("https://railbookingdate.com/pages/trains/a&b.html")
	if err != nil {
		t.Fatalf("CanonicalTag failed: %v", err)
	}
	if !strings.Contains(got, "a&amp;b.html") {
		t.Errorf("canonical href not attribute-escaped: %s", got)
	}

	got, err = tm.StylesheetTag("../../css/navigation.css")
	if err != nil {
		t.Fatalf("StylesheetTag failed: %v", err)
	}
	if want := `<link rel="stylesheet" href="../../css/navigation.css">`; got != want {
		t.Errorf("StylesheetTag() = %s, want %s", got, want)
	}
}

func TestManager_SetConfig(t *testing.T) {
	tm := setupTestManager(t)
	newConfig := DefaultConfig()
	newConfig.NavigationBlock = "footer"
	tm.SetConfig(newConfig)

	got, err := tm.NavigationBlock(testBlockData())
	if err != nil {
		t.Fatalf("NavigationBlock failed: %v", err)
	}
	if !strings.HasPrefix(got, "<footer") {
		t.Errorf("SetConfig did not switch the navigation block: %s", got)
	}
}
