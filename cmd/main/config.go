package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/natefinch/atomic"

	"github.com/railbookingdate/traindays/pkg/generate"
	"github.com/railbookingdate/traindays/pkg/rewrite"
	"github.com/railbookingdate/traindays/pkg/site"
	"github.com/railbookingdate/traindays/pkg/templating"
)

// Environment variables that override the config file.
const (
	envSiteRoot = "TRAINDAYS_SITE_ROOT"
	envBaseURL  = "TRAINDAYS_BASE_URL"
	envLogLevel = "TRAINDAYS_LOG_LEVEL"
	envWorkers  = "TRAINDAYS_WORKERS"
)

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Site      *site.Config               `json:"site_config"`
	Generate  *generate.Config           `json:"generate_config"`
	Rewrite   *rewrite.Config            `json:"rewrite_config"`
	Templates *templating.TemplateConfig `json:"template_config"`

	LogLevel string `json:"log_level"`

	// ReportDatabasePath is the run ledger's SQLite data source. Empty
	// disables the ledger.
	ReportDatabasePath string `json:"report_database_path"`

	// MetricsTextfile receives the run's metrics. Empty disables it.
	MetricsTextfile string `json:"metrics_textfile"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Site:               site.DefaultConfig(),
		Generate:           generate.DefaultConfig(),
		Rewrite:            rewrite.DefaultConfig(),
		Templates:          templating.DefaultConfig(),
		LogLevel:           "info",
		ReportDatabasePath: "./data/traindays_report.db?_journal_mode=WAL&_busy_timeout=5000",
		MetricsTextfile:    "",
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Defaults are still usable without the file.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.fillDefaults()
	return config, nil
}

// fillDefaults restores sections a config file set to null or left out.
func (c *Config) fillDefaults() {
	if c.Site == nil {
		c.Site = site.DefaultConfig()
	}
	if c.Generate == nil {
		c.Generate = generate.DefaultConfig()
	}
	if c.Rewrite == nil {
		c.Rewrite = rewrite.DefaultConfig()
	}
	if c.Templates == nil {
		c.Templates = templating.DefaultConfig()
	}
}

// ApplyEnv loads envFiles (".env" when none are given) into the process
// environment, without overriding variables already set, and then applies
// the TRAINDAYS_* overrides. Missing env files are ignored.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if v := os.Getenv(envSiteRoot); v != "" {
		c.Site.Root = v
	}
	if v := os.Getenv(envBaseURL); v != "" {
		c.Site.BaseURL = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(envWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s: %q", envWorkers, v)
		}
		c.Rewrite.Workers = n
	}
	return nil
}

// Validate rejects settings no job can run with.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Site.BaseURL, "http://") && !strings.HasPrefix(c.Site.BaseURL, "https://") {
		return fmt.Errorf("base_url %q is not an http(s) URL", c.Site.BaseURL)
	}
	if !strings.HasSuffix(c.Site.BaseURL, "/") {
		return fmt.Errorf("base_url %q must end with a slash", c.Site.BaseURL)
	}
	switch c.Generate.OnRowError {
	case generate.OnRowErrorSkip, generate.OnRowErrorAbort:
	default:
		return fmt.Errorf("on_row_error must be %q or %q, got %q",
			generate.OnRowErrorSkip, generate.OnRowErrorAbort, c.Generate.OnRowError)
	}
	if c.Site.TrainPagesDir == "" {
		return fmt.Errorf("train_pages_dir is empty")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
