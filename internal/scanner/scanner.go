// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scanner

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/metrics"
	"github.com/ManuGH/vodagg/internal/relay"
	"golang.org/x/time/rate"
)

// markers are substrings any healthy list response carries, in either
// JSON or XML form.
var markers = []string{`"class"`, `"list"`, `<class>`, `<list`, `vod_id`}

// Scanner probes sources sequentially.
type Scanner struct {
	fetcher cms.Fetcher
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPacing waits at least interval between probes. Zero disables pacing.
func WithPacing(interval time.Duration) Option {
	return func(s *Scanner) {
		if interval > 0 {
			s.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// New returns a scanner fetching through f (normally a *relay.Client).
func New(f cms.Fetcher, opts ...Option) *Scanner {
	s := &Scanner{fetcher: f, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProbeURL is the list request used to check a source.
func ProbeURL(apiBase string) string {
	return cms.BuildURL(apiBase, url.Values{"ac": {"list"}})
}

// Healthy reports whether body looks like a CMS list response.
func Healthy(body string) bool {
	for _, m := range markers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// Scan probes every source in order. Byte-identical API URLs are probed
// once; later copies are tallied as duplicates and never reported as
// working. A failed probe marks the source dead and the scan continues.
// onProgress may be nil. Cancellation stops the scan and returns ctx.Err()
// together with the partial result.
func (s *Scanner) Scan(ctx context.Context, sources []cms.SourceEndpoint, onProgress func(ProgressEvent)) (Result, error) {
	logger := log.WithComponentFromContext(ctx, "scanner")
	res := Result{Started: s.now()}
	seen := make(map[string]struct{}, len(sources))

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			res.Finished = s.now()
			return res, err
		}

		var status Status
		if _, dup := seen[src.APIBaseURL]; dup {
			res.DuplicateCount++
			status = StatusDuplicate
		} else {
			seen[src.APIBaseURL] = struct{}{}
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					res.Finished = s.now()
					return res, ctx.Err()
				}
			}
			status = s.probe(ctx, src)
			if ctx.Err() != nil {
				// a canceled probe says nothing about the source
				res.Finished = s.now()
				return res, ctx.Err()
			}
			if status == StatusWorking {
				res.WorkingSources = append(res.WorkingSources, src)
			} else {
				res.DeadAPIs = append(res.DeadAPIs, src.APIBaseURL)
			}
		}

		metrics.IncScanSource(string(status))
		logger.Debug().
			Str(log.FieldEvent, "scan.source").
			Str(log.FieldSourceName, src.Name).
			Str(log.FieldSourceAPI, src.APIBaseURL).
			Str("status", string(status)).
			Msg("source probed")
		if onProgress != nil {
			onProgress(ProgressEvent{Index: i + 1, Total: len(sources), CurrentName: src.Name, Status: status})
		}
	}

	res.Finished = s.now()
	metrics.SetScanWorking(len(res.WorkingSources))
	logger.Info().
		Str(log.FieldEvent, "scan.done").
		Int("total", len(sources)).
		Int("working", len(res.WorkingSources)).
		Int("dead", len(res.DeadAPIs)).
		Int("duplicates", res.DuplicateCount).
		Dur("duration", res.Finished.Sub(res.Started)).
		Msg("source scan finished")
	return res, nil
}

func (s *Scanner) probe(ctx context.Context, src cms.SourceEndpoint) Status {
	body, err := s.fetcher.Fetch(ctx, ProbeURL(src.APIBaseURL), relay.KindAPI)
	if err != nil {
		log.FromContext(ctx).Debug().Err(err).
			Str(log.FieldEvent, "scan.probe_failed").
			Str(log.FieldSourceAPI, src.APIBaseURL).
			Msg("probe failed")
		return StatusDead
	}
	if !Healthy(body) {
		return StatusDead
	}
	return StatusWorking
}

// Start runs Scan in the background. Progress events arrive on the first
// channel, which is closed before the single Outcome is sent on the
// second. Consumers that stop reading progress must cancel ctx.
func (s *Scanner) Start(ctx context.Context, sources []cms.SourceEndpoint) (<-chan ProgressEvent, <-chan Outcome) {
	progress := make(chan ProgressEvent)
	done := make(chan Outcome, 1)

	go func() {
		res, err := s.Scan(ctx, sources, func(ev ProgressEvent) {
			select {
			case progress <- ev:
			case <-ctx.Done():
			}
		})
		close(progress)
		done <- Outcome{Result: res, Err: err}
		close(done)
	}()
	return progress, done
}

// Plan derives the remediation for res. Dead custom sources are dropped,
// dead built-ins not yet in disabled are disabled. Duplicates fall out
// of the working set without being listed.
func Plan(res Result, sources []cms.SourceEndpoint, disabled map[string]bool) CleanupPlan {
	dead := make(map[string]bool, len(res.DeadAPIs))
	for _, api := range res.DeadAPIs {
		dead[api] = true
	}

	plan := CleanupPlan{Working: append([]cms.SourceEndpoint(nil), res.WorkingSources...)}
	listed := make(map[string]bool)
	for _, src := range sources {
		if !dead[src.APIBaseURL] || listed[src.APIBaseURL] {
			continue
		}
		listed[src.APIBaseURL] = true
		if src.IsCustom {
			plan.DropCustom = append(plan.DropCustom, src.APIBaseURL)
		} else if !src.IsDisabled && !disabled[src.APIBaseURL] {
			plan.DisableBuiltins = append(plan.DisableBuiltins, src.APIBaseURL)
		}
	}
	return plan
}
