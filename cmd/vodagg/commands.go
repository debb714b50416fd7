// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/vodagg/internal/api"
	"github.com/ManuGH/vodagg/internal/cms"
	xglog "github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/scanner"
	"github.com/ManuGH/vodagg/internal/search"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// selectSources returns the enabled sources, narrowed to apis when given.
// An api that is not configured is used ad hoc.
func selectSources(c *components, apis []string) []cms.SourceEndpoint {
	if len(apis) == 0 {
		return c.sources.Enabled()
	}
	out := make([]cms.SourceEndpoint, 0, len(apis))
	for _, a := range apis {
		if src, ok := c.sources.Lookup(a); ok {
			out = append(out, src)
			continue
		}
		out = append(out, cms.SourceEndpoint{Name: a, APIBaseURL: a})
	}
	return out
}

func runSearch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("search", stderr)
	var common commonFlags
	common.register(fs)
	var apis stringList
	fs.Var(&apis, "api", "restrict to this source API (repeatable)")
	timeout := fs.Duration("timeout", 30*time.Second, "overall search deadline")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return fmt.Errorf("%w: search needs a query", errUsage)
	}

	cfg, err := common.load(stderr)
	if err != nil {
		return err
	}
	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	ctx = xglog.ContextWithQueryID(ctx, uuid.NewString())

	engine := search.NewEngine(c.catalog, search.WithConcurrency(cfg.SearchConcurrency))
	recs, err := engine.Search(ctx, query, selectSources(c, apis))
	if err != nil {
		return err
	}
	return writeJSON(stdout, recs)
}

func runDetail(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("detail", stderr)
	var common commonFlags
	common.register(fs)
	apiBase := fs.String("api", "", "source API base URL")
	id := fs.String("id", "", "record id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *apiBase == "" || *id == "" {
		return fmt.Errorf("%w: detail needs -api and -id", errUsage)
	}

	cfg, err := common.load(stderr)
	if err != nil {
		return err
	}
	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	rec, err := c.catalog.Detail(ctx, selectSources(c, []string{*apiBase})[0], *id)
	if err != nil {
		return err
	}
	return writeJSON(stdout, rec)
}

// runSanitize writes the sanitized playlist to stdout (or -o) and a
// one-line summary to stderr.
func runSanitize(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("sanitize", stderr)
	var common commonFlags
	common.register(fs)
	out := fs.String("o", "", "write the playlist to this file instead of stdout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: sanitize needs exactly one playlist URL", errUsage)
	}
	target := fs.Arg(0)
	if u, err := url.Parse(target); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) URL", errUsage, target)
	}

	cfg, err := common.load(stderr)
	if err != nil {
		return err
	}
	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	res, err := c.sanitizer(nil, nil).Sanitize(ctx, target)
	if err != nil {
		return err
	}
	if *out != "" {
		if err := renameio.WriteFile(*out, []byte(res.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", *out, err)
		}
	} else if _, err := io.WriteString(stdout, res.Content); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "removed %d of %d segments (dominant %.0f%%, base %s)\n",
		res.RemovedCount, res.Segments, res.Ratio*100, res.BaseURL)
	return nil
}

// runScan probes every configured source and prints the report. With
// -apply the cleanup plan is written back to the sources file.
func runScan(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("scan", stderr)
	var common commonFlags
	common.register(fs)
	apply := fs.Bool("apply", false, "write the cleanup plan to the sources file")
	pace := fs.Duration("pace", 0, "minimum interval between probes")
	quiet := fs.Bool("q", false, "suppress progress lines")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := common.load(stderr)
	if err != nil {
		return err
	}
	c, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	all := c.sources.All()
	progress, done := scanner.New(c.relay, scanner.WithPacing(*pace)).Start(ctx, all)
	for ev := range progress {
		if !*quiet {
			fmt.Fprintf(stderr, "[%d/%d] %-8s %s\n", ev.Index, ev.Total, ev.Status, ev.CurrentName)
		}
	}
	outcome := <-done
	if outcome.Err != nil {
		return outcome.Err
	}

	rep := api.ScanReport{
		Result: outcome.Result,
		Plan:   scanner.Plan(outcome.Result, all, c.sources.Disabled()),
	}
	if *apply && !rep.Plan.Empty() {
		if err := c.sources.Apply(ctx, rep.Plan); err != nil {
			return err
		}
		rep.Applied = true
	}
	return writeJSON(stdout, rep)
}
