// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package search fans a query out to every selected catalog source,
// tolerates per-source failure, and merges same-title results.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/metrics"
	"github.com/ManuGH/vodagg/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptySourceSet means no enabled source was selected.
	ErrEmptySourceSet = errors.New("no sources selected")
	// ErrSuperseded means a newer query on the same session replaced this one.
	ErrSuperseded = errors.New("search superseded by a newer query")
)

// Searcher runs one keyword search against one source; *cms.Client
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, src cms.SourceEndpoint, query string) ([]cms.MediaRecord, error)
}

// Engine runs aggregate searches.
type Engine struct {
	searcher    Searcher
	concurrency int
	tracer      trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds how many sources are queried at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func NewEngine(s Searcher, opts ...Option) *Engine {
	e := &Engine{
		searcher:    s,
		concurrency: 16,
		tracer:      telemetry.Tracer("github.com/ManuGH/vodagg/internal/search"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search queries every enabled source concurrently. A failing source
// contributes nothing; the merged list is built only once every branch
// has settled, in source order. Cancellation of ctx returns ctx.Err().
func (e *Engine) Search(ctx context.Context, query string, sources []cms.SourceEndpoint) ([]cms.MediaRecord, error) {
	active := make([]cms.SourceEndpoint, 0, len(sources))
	for _, s := range sources {
		if !s.IsDisabled {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return nil, ErrEmptySourceSet
	}

	ctx, span := e.tracer.Start(ctx, "search.aggregate", trace.WithAttributes(
		telemetry.SearchAttributes(len(active), len(query))...,
	))
	defer span.End()

	logger := log.WithComponentFromContext(ctx, "search")
	start := time.Now()

	perSource := make([][]cms.MediaRecord, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, src := range active {
		g.Go(func() error {
			recs, err := e.searcher.Search(gctx, src, query)
			switch {
			case err != nil:
				if gctx.Err() == nil {
					metrics.IncSearchSource("error")
					logger.Debug().
						Str(log.FieldEvent, "search.source_failed").
						Str(log.FieldSourceAPI, src.APIBaseURL).
						Str(log.FieldSourceName, src.Name).
						Err(err).
						Msg("source search failed, contributing no results")
				}
				return nil
			case len(recs) == 0:
				metrics.IncSearchSource("empty")
			default:
				metrics.IncSearchSource("ok")
			}
			for j := range recs {
				recs[j].SourceAPI = src.APIBaseURL
				recs[j].SourceName = src.Name
			}
			perSource[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "canceled")
		return nil, err
	}

	merged := Merge(perSource)
	metrics.ObserveSearchDuration(time.Since(start))
	span.SetAttributes(attribute.Int(telemetry.SearchResultsKey, len(merged)))
	logger.Debug().
		Str(log.FieldEvent, "search.completed").
		Int("sources", len(active)).
		Int("results", len(merged)).
		Dur("duration", time.Since(start)).
		Msg("aggregate search settled")
	return merged, nil
}
