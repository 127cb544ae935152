package rewrite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/railbookingdate/traindays/pkg/site"
)

// TrainPages lists the route pages, as paths relative to the site root.
func TrainPages(cfg *site.Config) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(cfg.Path(cfg.TrainPagesDir), "*.html"))
	if err != nil {
		return nil, err
	}
	return relativize(cfg, matches)
}

// SitePages lists the root index.html, when present, followed by every
// .html file under pagesDir. Hidden directories are skipped.
func SitePages(cfg *site.Config, pagesDir string) ([]string, error) {
	var files []string
	if _, err := os.Stat(cfg.Path("index.html")); err == nil {
		files = append(files, cfg.Path("index.html"))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var pages []string
	err := filepath.WalkDir(cfg.Path(pagesDir), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == cfg.Path(pagesDir) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if p != cfg.Path(pagesDir) && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".html") {
			pages = append(pages, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", pagesDir, err)
	}
	sort.Strings(pages)

	return relativize(cfg, append(files, pages...))
}

func relativize(cfg *site.Config, paths []string) ([]string, error) {
	root := cfg.Path("")
	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, err
		}
		rels = append(rels, filepath.ToSlash(rel))
	}
	return rels, nil
}
