package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitFindings = 3
)

var errUsage = errors.New("usage")

func main() {
	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	os.Exit(exitCode(err, baseLogger))
}

func exitCode(err error, logger *slog.Logger) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		logger.Error("Invalid invocation", "error", err)
		return exitUsage
	case errors.Is(err, errAuditFindings):
		logger.Warn("Audit reported problems")
		return exitFindings
	default:
		logger.Error("traindays failed", "error", err)
		return exitFailure
	}
}

// run parses args, loads the configuration and executes one command.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("traindays", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "./config.json", "path to the JSON config file, created with defaults when missing")
	root := fs.String("root", "", "site root directory (overrides site_config.root)")
	baseURL := fs.String("base-url", "", "canonical base URL (overrides site_config.base_url)")
	workers := fs.Int("workers", -1, "files processed in parallel by rewrite and audit (0 means one per CPU)")
	limit := fs.Int("limit", 20, "number of runs shown by history")
	verbose := fs.Bool("v", false, "enable debug logging")
	showVersion := fs.Bool("version", false, "print the version and exit")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: traindays [flags] <%s>\n\nFlags:\n", strings.Join(commands, "|"))
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *showVersion {
		_, _ = fmt.Fprintf(stdout, "traindays %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		return nil
	}
	if fs.NArg() != 1 || !slices.Contains(commands, fs.Arg(0)) {
		fs.Usage()
		return fmt.Errorf("%w: expected one command, got %q", errUsage, fs.Args())
	}
	command := fs.Arg(0)

	config, err := LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err = config.ApplyEnv(); err != nil {
		return err
	}
	if *root != "" {
		config.Site.Root = *root
	}
	if *baseURL != "" {
		config.Site.BaseURL = *baseURL
	}
	if *workers >= 0 {
		config.Rewrite.Workers = *workers
	}
	if err = config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logLevel := parseLogLevel(config.LogLevel)
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: logLevel}))
	logger.Debug("Configuration loaded", "config", *configPath, "root", config.Site.Root, "version", Version)

	app, err := NewApp(config, logger, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	runErr := app.Run(ctx, command, *limit)
	if command != cmdHistory {
		if err = app.WriteMetrics(); err != nil {
			logger.Error("Failed to write metrics", "error", err)
		}
	}
	return runErr
}
