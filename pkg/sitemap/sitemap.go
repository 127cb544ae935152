// Package sitemap builds sitemap documents following the sitemaps.org 0.9
// protocol.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/natefinch/atomic"
)

// Namespace is the sitemaps.org schema namespace.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// DateLayout is the lastmod format.
const DateLayout = "2006-01-02"

// Entry is a single <url> element.
type Entry struct {
	XMLName    xml.Name `xml:"url"`
	Loc        string   `xml:"loc"`
	LastMod    string   `xml:"lastmod"`
	ChangeFreq string   `xml:"changefreq"`
	Priority   string   `xml:"priority"`
}

// URLSet is the document root.
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []Entry  `xml:"url"`
}

var validChangeFreqs = map[string]struct{}{
	"always": {}, "hourly": {}, "daily": {}, "weekly": {},
	"monthly": {}, "yearly": {}, "never": {},
}

// Builder accumulates entries that all share one lastmod date.
type Builder struct {
	lastMod string
	seen    map[string]struct{}
	urls    []Entry
}

// NewBuilder returns a Builder stamping every entry with the date of now.
func NewBuilder(now time.Time) *Builder {
	return &Builder{
		lastMod: now.Format(DateLayout),
		seen:    make(map[string]struct{}),
	}
}

// Add appends an entry. Duplicate locations are ignored so a static page
// can never be listed twice.
func (b *Builder) Add(loc, priority, changeFreq string) error {
	if loc == "" {
		return fmt.Errorf("sitemap entry has an empty location")
	}
	if _, ok := validChangeFreqs[changeFreq]; !ok {
		return fmt.Errorf("sitemap entry %s: invalid changefreq %q", loc, changeFreq)
	}
	if _, dup := b.seen[loc]; dup {
		return nil
	}
	b.seen[loc] = struct{}{}
	b.urls = append(b.urls, Entry{
		Loc:        loc,
		LastMod:    b.lastMod,
		ChangeFreq: changeFreq,
		Priority:   priority,
	})
	return nil
}

// Len returns the number of entries.
func (b *Builder) Len() int {
	return len(b.urls)
}

// Entries returns a copy of the entries in insertion order.
func (b *Builder) Entries() []Entry {
	out := make([]Entry, len(b.urls))
	copy(out, b.urls)
	return out
}

// WriteTo encodes the sitemap, XML declaration included.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	set := URLSet{XMLNS: Namespace, URLs: b.urls}
	output, err := xml.MarshalIndent(set, "", "    ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal sitemap: %w", err)
	}
	n, err := io.WriteString(w, xml.Header+string(output)+"\n")
	return int64(n), err
}

// WriteFile writes the sitemap to path atomically.
func (b *Builder) WriteFile(path string) error {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write sitemap %s: %w", path, err)
	}
	return nil
}
