// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the retrieval engine over HTTP: aggregate search,
// catalog detail and listing, playlist sanitization with synthetic
// playlist handles, the local relay endpoint, and source scans.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/vodagg/internal/api/middleware"
	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/health"
	"github.com/ManuGH/vodagg/internal/hls"
	"github.com/ManuGH/vodagg/internal/scanner"
	"github.com/ManuGH/vodagg/internal/search"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Catalog is the per-source CMS surface; *cms.Client satisfies it.
type Catalog interface {
	ListPage(ctx context.Context, src cms.SourceEndpoint, typeID string, page int) (cms.Payload, error)
	Detail(ctx context.Context, src cms.SourceEndpoint, id string) (cms.MediaRecord, error)
}

// SourceStore is the persisted source list; *sources.Store satisfies it.
type SourceStore interface {
	All() []cms.SourceEndpoint
	Enabled() []cms.SourceEndpoint
	Disabled() map[string]bool
	Lookup(api string) (cms.SourceEndpoint, bool)
	Apply(ctx context.Context, plan scanner.CleanupPlan) error
}

// Resolver decides what the player loads; *hls.Sanitizer satisfies it.
type Resolver interface {
	ResolveDetail(ctx context.Context, playlistURL string) hls.Resolution
}

// Scanner probes sources; *scanner.Scanner satisfies it.
type Scanner interface {
	Scan(ctx context.Context, sources []cms.SourceEndpoint, onProgress func(scanner.ProgressEvent)) (scanner.Result, error)
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Catalog   Catalog
	Sources   SourceStore
	Engine    *search.Engine
	Sessions  *search.Sessions
	Resolver  Resolver
	Playlists *hls.Store
	Relay     http.Handler
	Scanner   Scanner
	Health    *health.Manager

	RelayRatePerMin int
	Tracing         bool
}

// Server is the HTTP front of vodagg.
type Server struct {
	deps Deps

	scanMu sync.Mutex

	lastMu      sync.RWMutex
	lastScan    time.Time
	lastWorking int
	lastErr     error
}

func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{EnableMetrics: true, EnableLogging: true})

	if s.deps.Health != nil {
		r.Get("/healthz", s.deps.Health.ServeHealth)
		r.Get("/readyz", s.deps.Health.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/detail", s.handleDetail)
		r.Get("/list", s.handleList)
		r.Get("/sources", s.handleSources)
		r.Get("/sanitize", s.handleSanitize)
		r.Post("/scan", s.handleScan)
	})

	r.Get("/playlist/{name}", s.handlePlaylist)
	r.Delete("/playlist/{name}", s.handleRelease)

	if s.deps.Relay != nil {
		r.With(middleware.RelayRateLimit(s.deps.RelayRatePerMin)).Handle("/relay", s.deps.Relay)
	}

	if s.deps.Tracing {
		return otelhttp.NewHandler(r, "vodagg")
	}
	return r
}

// PlaylistURL is the path a handle is served under.
func PlaylistURL(h hls.Handle) string {
	return "/playlist/" + string(h) + ".m3u8"
}
