package rewrite

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/railbookingdate/traindays/pkg/generate"
	"github.com/railbookingdate/traindays/pkg/site"
	"github.com/railbookingdate/traindays/pkg/templating"
)

const legacyPage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Trains between DELHI and MUMBAI</title>
    <style>body { margin: 0; }</style>
</head>
<body>
    <header>
        <nav class="nav-links">
            <a href="../../index.html">Home</a>
        </nav>
    </header>
    <main><p>content</p></main>
    <footer class="site-footer">
        <p>old footer</p>
    </footer>
</body>
</html>
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestRewriter returns a Rewriter over an empty temp site root.
func setupTestRewriter(tb testing.TB, edits ...Edit) (*Rewriter, *site.Config) {
	tb.Helper()
	siteCfg := site.DefaultConfig()
	siteCfg.Root = tb.TempDir()

	tm, err := templating.NewTemplateManager(discardLogger(), templating.DefaultConfig())
	if err != nil {
		tb.Fatalf("NewTemplateManager failed: %v", err)
	}
	config := DefaultConfig()
	config.Workers = 2
	r, err := NewRewriter(siteCfg, config, tm, discardLogger(), edits...)
	if err != nil {
		tb.Fatalf("NewRewriter failed: %v", err)
	}
	return r, siteCfg
}

func writeFile(tb testing.TB, cfg *site.Config, rel, content string) {
	tb.Helper()
	p := cfg.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		tb.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		tb.Fatal(err)
	}
}

func parse(t *testing.T, content string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	return doc
}

func TestSetCanonical(t *testing.T) {
	const tag = `<link rel="canonical" href="https://x/">`
	testCases := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{
			name:    "replaces existing",
			content: "<head>\n    <title>T</title>\n    <link rel=\"canonical\" href=\"https://old/\">\n</head>",
			want:    "<head>\n    <title>T</title>\n    " + tag + "\n</head>",
			ok:      true,
		},
		{
			name:    "removes duplicates",
			content: "<title>T</title>\n    <link rel=\"canonical\" href=\"a\">\n    <link rel='canonical' href='b'>\n<meta>",
			want:    "<title>T</title>\n    " + tag + "\n<meta>",
			ok:      true,
		},
		{
			name:    "rel after href",
			content: "<title>T</title>\n    <link href=\"https://old/\" rel=\"canonical\">\n</head>",
			want:    "<title>T</title>\n    " + tag + "\n</head>",
			ok:      true,
		},
		{
			name:    "mixed attribute order",
			content: "<title>T</title>\n    <link rel=\"canonical\" href=\"a\">\n    <LINK type=\"text/html\" href=\"b\" rel=\"canonical\" />\n<meta>",
			want:    "<title>T</title>\n    " + tag + "\n<meta>",
			ok:      true,
		},
		{
			name:    "other link relations untouched",
			content: "<title>T</title>\n    <link rel=\"icon\" href=\"f.ico\">\n    <link data-rel=\"canonical\" href=\"x\">\n</head>",
			want:    "<title>T</title>\n    " + tag + "\n    <link rel=\"icon\" href=\"f.ico\">\n    <link data-rel=\"canonical\" href=\"x\">\n</head>",
			ok:      true,
		},
		{
			name:    "inserts after title",
			content: "<head>\n    <title>T</title>\n</head>",
			want:    "<head>\n    <title>T</title>\n    " + tag + "\n</head>",
			ok:      true,
		},
		{
			name:    "inserts after head",
			content: "<head>\n</head>",
			want:    "<head>\n    " + tag + "\n</head>",
			ok:      true,
		},
		{
			name:    "no anchor",
			content: "<p>fragment</p>",
			want:    "<p>fragment</p>",
			ok:      false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := setCanonical(tc.content, tag)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if got != tc.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tc.want)
			}
			again, _ := setCanonical(got, tag)
			if again != got {
				t.Errorf("second application changed the content:\n%s", again)
			}
		})
	}
}

func TestRewriter_ApplyLegacyPage(t *testing.T) {
	r, _ := setupTestRewriter(t)
	rel := "pages/trains/train-between-delhi-mumbai.html"

	out, applied, warnings, err := r.Apply(rel, legacyPage)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(applied) != len(AllEdits) {
		t.Errorf("expected every edit to apply, got %v", applied)
	}

	doc := parse(t, out)
	if n := doc.Find("nav.nav-links").Length(); n != 0 {
		t.Errorf("legacy navigation survived (%d blocks)", n)
	}
	if n := doc.Find("nav.main-nav").Length(); n != 1 {
		t.Errorf("expected one main navigation block, got %d", n)
	}
	if href, _ := doc.Find("nav.main-nav a").Eq(1).Attr("href"); href != "../../pages/tatkal.html" {
		t.Errorf("unexpected navigation link %q", href)
	}
	if n := doc.Find("footer.site-footer nav.site-footer-nav a").Length(); n != 11 {
		t.Errorf("expected 11 footer links, got %d", n)
	}
	if strings.Contains(out, "old footer") {
		t.Error("old footer content survived")
	}
	canonical := doc.Find(`link[rel="canonical"]`)
	if canonical.Length() != 1 {
		t.Fatalf("expected one canonical link, got %d", canonical.Length())
	}
	if href, _ := canonical.Attr("href"); href != "https://railbookingdate.com/"+rel {
		t.Errorf("unexpected canonical href %q", href)
	}
	if n := doc.Find(`head link[rel="stylesheet"][href="../../css/navigation.css"]`).Length(); n != 1 {
		t.Errorf("expected the navigation stylesheet in head once, got %d", n)
	}

	again, applied, _, err := r.Apply(rel, out)
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if again != out || len(applied) != 0 {
		t.Errorf("second Apply was not a no-op, applied %v", applied)
	}
}

func TestRewriter_ApplyMissingAnchors(t *testing.T) {
	r, _ := setupTestRewriter(t)
	content := "<p>just a fragment</p>\n"

	out, applied, warnings, err := r.Apply("pages/fragment.html", content)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out != content || len(applied) != 0 {
		t.Errorf("content should be untouched, applied %v", applied)
	}
	if len(warnings) != len(AllEdits) {
		t.Fatalf("expected a warning per edit, got %v", warnings)
	}
	for i, w := range warnings {
		if w.Edit != AllEdits[i] || w.File != "pages/fragment.html" || w.Reason == "" {
			t.Errorf("unexpected warning %+v", w)
		}
	}
}

func TestRewriter_PartialAnchors(t *testing.T) {
	r, _ := setupTestRewriter(t)
	content := "<html><head><title>T</title></head><body><p>x</p></body></html>"

	out, applied, warnings, err := r.Apply("pages/faq.html", content)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(applied) != 2 || applied[0] != EditCanonical || applied[1] != EditStylesheet {
		t.Errorf("expected canonical and stylesheet edits, got %v", applied)
	}
	if len(warnings) != 2 || warnings[0].Edit != EditNavigation || warnings[1].Edit != EditFooter {
		t.Errorf("expected navigation and footer warnings, got %v", warnings)
	}
	if !strings.Contains(out, `href="../css/navigation.css"`) {
		t.Errorf("stylesheet not relative to pages/: %s", out)
	}
}

func TestRewriter_Run(t *testing.T) {
	r, siteCfg := setupTestRewriter(t)
	files := []string{
		"pages/trains/train-between-a-b.html",
		"pages/trains/train-between-b-c.html",
		"pages/trains/train-between-c-d.html",
	}
	for _, f := range files {
		writeFile(t, siteCfg, f, legacyPage)
	}

	result, err := r.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Changed != len(files) {
		t.Errorf("expected %d changed files, got %d", len(files), result.Changed)
	}
	for i, res := range result.Files {
		if res.File != files[i] {
			t.Errorf("result %d is for %s, want %s", i, res.File, files[i])
		}
	}

	data, err := os.ReadFile(siteCfg.Path(files[1]))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `href="https://railbookingdate.com/pages/trains/train-between-b-c.html"`) {
		t.Error("rewritten file does not carry its own canonical URL")
	}

	result, err = r.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if result.Changed != 0 {
		t.Errorf("second Run changed %d files", result.Changed)
	}
}

func TestRewriter_RunMissingFile(t *testing.T) {
	r, _ := setupTestRewriter(t)
	if _, err := r.Run(context.Background(), []string{"pages/missing.html"}); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestRewriter_CanonicalOnly(t *testing.T) {
	r, siteCfg := setupTestRewriter(t, EditCanonical)
	writeFile(t, siteCfg, "index.html", legacyPage)

	if _, err := r.Run(context.Background(), []string{"index.html"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	data, err := os.ReadFile(siteCfg.Path("index.html"))
	if err != nil {
		t.Fatal(err)
	}
	doc := parse(t, string(data))
	if href, _ := doc.Find(`link[rel="canonical"]`).Attr("href"); href != "https://railbookingdate.com/" {
		t.Errorf("root index should use the bare base URL, got %q", href)
	}
	if doc.Find("nav.nav-links").Length() != 1 {
		t.Error("canonical-only rewrite must leave navigation alone")
	}
}

func TestRewriter_GeneratedPagesUnchanged(t *testing.T) {
	r, siteCfg := setupTestRewriter(t)
	writeFile(t, siteCfg, "trains.csv", "Train Number,Train Name,Starting Station,Ending Station\n"+
		"12301,Rajdhani,DELHI,MUMBAI\n12302,Rajdhani Return,MUMBAI,DELHI\n11007,Deccan Express,Mumbai,Pune\n")

	gen := generate.NewGenerator(siteCfg, generate.DefaultConfig(), r.tm, discardLogger(),
		func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) })
	if _, err := gen.Run(context.Background()); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	files, err := TrainPages(siteCfg)
	if err != nil {
		t.Fatalf("TrainPages failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 generated pages, got %v", files)
	}

	result, err := r.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Changed != 0 || len(result.Warnings) != 0 {
		t.Errorf("generated pages should already be current: changed=%d warnings=%v", result.Changed, result.Warnings)
	}
}

func TestNewRewriter_UnknownEdit(t *testing.T) {
	siteCfg := site.DefaultConfig()
	if _, err := NewRewriter(siteCfg, nil, nil, discardLogger(), "favicon"); err == nil {
		t.Fatal("expected an error for an unknown edit")
	}
}

func TestSitePages(t *testing.T) {
	_, siteCfg := setupTestRewriter(t)
	for _, rel := range []string{
		"index.html",
		"about.html",
		"pages/faq.html",
		"pages/notes.txt",
		"pages/trains/train-between-a-b.html",
		"pages/.trains.staging-1/train-between-a-b.html",
	} {
		writeFile(t, siteCfg, rel, "<html></html>")
	}

	got, err := SitePages(siteCfg, "pages")
	if err != nil {
		t.Fatalf("SitePages failed: %v", err)
	}
	want := []string{"index.html", "pages/faq.html", "pages/trains/train-between-a-b.html"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("SitePages() = %v, want %v", got, want)
	}
}

func TestSitePages_Empty(t *testing.T) {
	_, siteCfg := setupTestRewriter(t)
	got, err := SitePages(siteCfg, "pages")
	if err != nil {
		t.Fatalf("SitePages failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no pages, got %v", got)
	}
}
