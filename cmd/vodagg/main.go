// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command vodagg aggregates video-CMS catalogs and sanitizes HLS playlists.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/vodagg/internal/config"
	xglog "github.com/ManuGH/vodagg/internal/log"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

const usage = `usage: vodagg <command> [flags]

commands:
  search     aggregate search across enabled sources
  detail     fetch one record with its episodes
  sanitize   strip ad segments from an HLS playlist
  scan       probe sources and print a cleanup plan
  serve      run the HTTP API
  healthcheck  probe a running server
  version    print version and exit
`

// errUsage marks bad invocations; they exit with status 2.
var errUsage = errors.New("usage error")

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type command func(ctx context.Context, args []string, stdout, stderr io.Writer) error

func commands() map[string]command {
	return map[string]command{
		"search":   runSearch,
		"detail":   runDetail,
		"sanitize": runSanitize,
		"scan":     runScan,
		"serve":    runServe,
		"version": func(_ context.Context, _ []string, stdout, _ io.Writer) error {
			_, err := fmt.Fprintf(stdout, "%s (commit: %s, built: %s)\n", version, commit, buildDate)
			return err
		},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	name, rest := args[0], args[1:]
	switch name {
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "-version", "--version":
		name = "version"
	case "healthcheck":
		return runHealthcheckCLI(rest, stdout, stderr)
	}

	cmd, ok := commands()[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", name, usage)
		return 2
	}
	if err := cmd(ctx, rest, stdout, stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "vodagg %s: %v\n", name, err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

// commonFlags are accepted by every command that loads configuration.
type commonFlags struct {
	configPath  string
	sourcesFile string
	logLevel    string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to config file (YAML)")
	fs.StringVar(&c.sourcesFile, "sources", "", "path to sources file (overrides config)")
	fs.StringVar(&c.logLevel, "log-level", "", "log level (overrides config)")
}

// load resolves configuration and configures logging to logOut. CLI
// commands log to stderr so stdout stays machine readable.
func (c *commonFlags) load(logOut io.Writer) (config.AppConfig, error) {
	path := strings.TrimSpace(c.configPath)
	if path == "" {
		path = strings.TrimSpace(config.ParseString("VODAGG_CONFIG", ""))
	}
	cfg, err := config.NewLoader(path, version).Load()
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	if c.sourcesFile != "" {
		cfg.SourcesFile = c.sourcesFile
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  logOut,
		Service: "vodagg",
		Version: version,
	})
	return cfg, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
