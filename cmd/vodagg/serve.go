// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/vodagg/internal/api"
	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/daemon"
	"github.com/ManuGH/vodagg/internal/health"
	"github.com/ManuGH/vodagg/internal/hls"
	xglog "github.com/ManuGH/vodagg/internal/log"
	pnet "github.com/ManuGH/vodagg/internal/platform/net"
	"github.com/ManuGH/vodagg/internal/relay"
	"github.com/ManuGH/vodagg/internal/scanner"
	"github.com/ManuGH/vodagg/internal/search"
	"github.com/ManuGH/vodagg/internal/telemetry"
)

const (
	sessionIdle   = 10 * time.Minute
	sessionSweep  = time.Minute
	scanStaleness = 2
)

func runServe(ctx context.Context, args []string, _, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	var common commonFlags
	common.register(fs)
	listen := fs.String("listen", "", "listen address (overrides config)")
	scanApply := fs.Bool("scan-apply", false, "apply cleanup plans from periodic scans")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := common.load(stderr)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	logger := xglog.WithComponent("daemon")

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.Listen).
		Msg("starting vodagg")

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "vodagg",
		ServiceVersion: version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	c, err := build(ctx, cfg)
	if err != nil {
		_ = provider.Shutdown(context.WithoutCancel(ctx))
		return err
	}

	engine := search.NewEngine(c.catalog, search.WithConcurrency(cfg.SearchConcurrency))
	sessions := search.NewSessions(engine)
	playlists := hls.NewStore(cfg.PlaylistStoreSize)
	hm := health.NewManager(version)
	relayHandler := relay.NewHandler(c.http, cfg.APITimeout, relay.WithOutboundPolicy(pnet.OutboundPolicy{
		AllowCIDRs:   cfg.RelayAllowCIDRs,
		AllowPrivate: cfg.RelayAllowPrivate,
	}))

	srv := api.New(api.Deps{
		Catalog:         c.catalog,
		Sources:         c.sources,
		Engine:          engine,
		Sessions:        sessions,
		Resolver:        c.sanitizer(playlists, api.PlaylistURL),
		Playlists:       playlists,
		Relay:           relayHandler,
		Scanner:         scanner.New(c.relay),
		Health:          hm,
		RelayRatePerMin: cfg.RelayRatePerMin,
		Tracing:         cfg.Telemetry.Enabled,
	})

	hm.RegisterChecker(health.NewSourcesChecker(c.sources.Len))
	if cfg.ScanInterval > 0 {
		hm.RegisterChecker(health.NewScanChecker(srv.LastScan, scanStaleness*cfg.ScanInterval))
	}
	if c.redis != nil {
		hm.RegisterChecker(health.NewPingChecker("redis", c.redis, true))
	}

	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.Listen), daemon.Deps{
		Logger:     logger,
		APIHandler: srv.Handler(),
	})
	if err != nil {
		_ = c.Close()
		_ = provider.Shutdown(context.WithoutCancel(ctx))
		return err
	}
	mgr.RegisterShutdownHook("tracing", provider.Shutdown)
	mgr.RegisterShutdownHook("components", func(context.Context) error { return c.Close() })

	tasks := map[string]daemon.Task{
		"sources-watch": func(ctx context.Context) error {
			return c.sources.Watch(ctx, func(list []cms.SourceEndpoint) {
				logger.Info().
					Str(xglog.FieldEvent, "sources.reloaded").
					Int("total", len(list)).
					Int("enabled", c.sources.Len()).
					Msg("source list reloaded")
			})
		},
		"session-sweep": func(ctx context.Context) error {
			ticker := time.NewTicker(sessionSweep)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if n := sessions.Sweep(sessionIdle); n > 0 {
						logger.Debug().Str(xglog.FieldEvent, "search.sessions_swept").Int("count", n).Msg("idle search sessions dropped")
					}
				}
			}
		},
	}
	if cfg.ScanInterval > 0 {
		tasks["periodic-scan"] = func(ctx context.Context) error {
			srv.ScanEvery(ctx, cfg.ScanInterval, *scanApply)
			return nil
		}
	}
	for name, task := range tasks {
		if err := mgr.Go(name, task); err != nil {
			return err
		}
	}

	if err := mgr.Start(ctx); err != nil {
		// Runs the hooks when Start failed before serving.
		_ = mgr.Shutdown(context.WithoutCancel(ctx))
		logger.Error().Err(err).Str(xglog.FieldEvent, "manager.failed").Msg("daemon failed")
		return err
	}
	logger.Info().Str(xglog.FieldEvent, "shutdown").Msg("server exiting")
	return nil
}
