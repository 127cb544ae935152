// Package site describes the railbookingdate.com layout: its base URL, the
// static pages listed in the sitemap, and the links shared by the navigation
// and footer blocks.
package site

import (
	"path/filepath"
	"strings"
)

// Link is a navigation entry. Path is relative to the site root.
type Link struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// StaticPage is a hand-written page listed in the sitemap.
type StaticPage struct {
	Path       string `json:"path"`
	Priority   string `json:"priority"`
	ChangeFreq string `json:"changefreq"`
}

// Config holds everything needed to lay pages out on the site.
type Config struct {
	// BaseURL is the site origin. The root index page canonicalizes to it.
	BaseURL string `json:"base_url"`

	// Root is the local directory holding the site.
	Root string `json:"root"`

	// TrainPagesDir is the directory of generated route pages, relative to Root.
	TrainPagesDir string `json:"train_pages_dir"`

	// SitemapPath is the sitemap location, relative to Root.
	SitemapPath string `json:"sitemap_path"`

	// Stylesheet is the navigation stylesheet, relative to Root.
	Stylesheet string `json:"stylesheet"`

	// Copyright is the footer's copyright line.
	Copyright string `json:"copyright"`

	// AnalyticsID and AdsenseClient are embedded in generated pages when set.
	AnalyticsID   string `json:"analytics_id"`
	AdsenseClient string `json:"adsense_client"`

	NavLinks    []Link       `json:"nav_links"`
	FooterLinks []Link       `json:"footer_links"`
	StaticPages []StaticPage `json:"static_pages"`

	// RoutePriority and RouteChangeFreq apply to every generated route page.
	RoutePriority   string `json:"route_priority"`
	RouteChangeFreq string `json:"route_changefreq"`
}

// DefaultConfig returns the layout of the live site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "https://railbookingdate.com/",
		Root:          ".",
		TrainPagesDir: "pages/trains",
		SitemapPath:   "sitemap.xml",
		Stylesheet:    "css/navigation.css",
		Copyright:     "© 2026 RailBookingDate - Created by Ishwar Joshi",
		AnalyticsID:   "G-NL4NTX1D6V",
		AdsenseClient: "ca-pub-5018644317959743",
		NavLinks: []Link{
			{"Calculator", "index.html"},
			{"Tatkal Dates", "pages/tatkal.html"},
			{"Rail News", "pages/news.html"},
			{"FAQ", "pages/faq.html"},
			{"eWallet", "pages/ewallet.html"},
			{"Helpline", "pages/helpline.html"},
			{"Train Videos", "pages/videos.html"},
			{"About", "pages/about-us.html"},
			{"Privacy", "pages/privacy-policy.html"},
			{"Contact", "pages/contact-us.html"},
			{"Disclaimer", "pages/disclaimer.html"},
		},
		FooterLinks: []Link{
			{"Calculator", "index.html"},
			{"Tatkal Dates", "pages/tatkal.html"},
			{"Rail News", "pages/news.html"},
			{"FAQ", "pages/faq.html"},
			{"eWallet", "pages/ewallet.html"},
			{"Helpline", "pages/helpline.html"},
			{"Train Videos", "pages/videos.html"},
			{"About Us", "pages/about-us.html"},
			{"Privacy Policy", "pages/privacy-policy.html"},
			{"Contact Us", "pages/contact-us.html"},
			{"Disclaimer", "pages/disclaimer.html"},
		},
		StaticPages: []StaticPage{
			{"index.html", "1.0", "daily"},
			{"pages/tatkal.html", "0.8", "weekly"},
			{"pages/news.html", "0.8", "daily"},
			{"pages/faq.html", "0.7", "monthly"},
			{"pages/ewallet.html", "0.7", "monthly"},
			{"pages/helpline.html", "0.7", "monthly"},
			{"pages/videos.html", "0.6", "weekly"},
			{"pages/disclaimer.html", "0.5", "monthly"},
			{"pages/privacy-policy.html", "0.5", "monthly"},
			{"pages/about-us.html", "0.5", "monthly"},
			{"pages/contact-us.html", "0.5", "monthly"},
		},
		RoutePriority:   "0.6",
		RouteChangeFreq: "weekly",
	}
}

// CanonicalURL maps a root-relative path to its canonical URL. The root
// index page maps to the bare base URL.
func (c *Config) CanonicalURL(relPath string) string {
	rel := strings.TrimPrefix(filepath.ToSlash(relPath), "/")
	if rel == "index.html" || rel == "" {
		return c.BaseURL
	}
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + rel
}

// Path joins a root-relative path onto the local site root.
func (c *Config) Path(relPath string) string {
	return filepath.Join(c.Root, filepath.FromSlash(relPath))
}

// TrainPagePath returns the root-relative path of a generated route page.
func (c *Config) TrainPagePath(filename string) string {
	return strings.TrimSuffix(filepath.ToSlash(c.TrainPagesDir), "/") + "/" + filename
}

// RelRoot returns the "../" prefix that leads from the directory holding
// relPath back to the site root. Pages at the root get an empty prefix.
func RelRoot(relPath string) string {
	dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(relPath)))
	if dir == "." || dir == "" {
		return ""
	}
	return strings.Repeat("../", strings.Count(strings.Trim(dir, "/"), "/")+1)
}
