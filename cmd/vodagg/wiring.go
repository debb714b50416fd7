// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/vodagg/internal/cache"
	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/config"
	"github.com/ManuGH/vodagg/internal/hls"
	xglog "github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/platform/httpx"
	"github.com/ManuGH/vodagg/internal/relay"
	"github.com/ManuGH/vodagg/internal/sources"
)

const (
	breakerThreshold = 5
	breakerReset     = 30 * time.Second
	cacheJanitor     = time.Minute
)

// components are the collaborators shared by every command.
type components struct {
	cfg     config.AppConfig
	http    *http.Client
	relay   *relay.Client
	cache   cache.Cache
	redis   *cache.RedisCache
	catalog *cms.Client
	sources *sources.Store
	closers []func() error
}

func build(ctx context.Context, cfg config.AppConfig) (*components, error) {
	logger := xglog.WithComponent("wiring")
	c := &components{cfg: cfg}

	opts := []httpx.Option{httpx.WithUserAgent("vodagg/" + version)}
	if cfg.Telemetry.Enabled {
		opts = append(opts, httpx.WithTracing())
	}
	c.http = httpx.NewClient(max(cfg.APITimeout, cfg.PlaylistTimeout), opts...)

	strategies, err := relay.StrategiesFromConfig(cfg.Relays)
	if err != nil {
		return nil, err
	}
	c.relay, err = relay.NewClient(strategies, relay.Options{
		HTTPClient:       c.http,
		APITimeout:       cfg.APITimeout,
		PlaylistTimeout:  cfg.PlaylistTimeout,
		HTMLHosts:        cfg.HTMLHosts,
		BreakerThreshold: breakerThreshold,
		BreakerReset:     breakerReset,
	})
	if err != nil {
		return nil, err
	}
	for _, s := range strategies {
		logger.Debug().
			Str(xglog.FieldEvent, "relay.strategy").
			Str("name", s.Name).
			Str("prefix", maskURL(s.Prefix)).
			Str("mode", s.Mode.String()).
			Msg("relay strategy configured")
	}

	if err := c.openCache(ctx); err != nil {
		return nil, err
	}
	c.catalog = cms.NewClient(c.relay,
		cms.WithCache(c.cache, cfg.Cache.TTL),
		cms.WithDetailTimeout(time.Duration(len(strategies))*cfg.APITimeout),
	)

	c.sources, err = sources.Open(cfg.SourcesFile)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	logger.Info().
		Str(xglog.FieldEvent, "sources.loaded").
		Str("path", cfg.SourcesFile).
		Int("enabled", c.sources.Len()).
		Int("total", len(c.sources.All())).
		Msg("source list loaded")
	return c, nil
}

// openCache prefers Redis when an address is configured; a memory cache is
// the fallback.
func (c *components) openCache(ctx context.Context) error {
	cc := c.cfg.Cache
	if cc.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword,
			DB:       cc.RedisDB,
			Prefix:   "vodagg:",
		}, xglog.WithComponent("cache"))
		if err != nil {
			return fmt.Errorf("open redis cache at %s: %w", maskURL(cc.RedisAddr), err)
		}
		c.cache, c.redis = rc, rc
		c.closers = append(c.closers, rc.Close)
		return nil
	}
	mc := cache.NewMemoryCache(cc.Size, cacheJanitor)
	c.cache = mc
	c.closers = append(c.closers, func() error { mc.Stop(); return nil })
	return nil
}

// sanitizer builds the playlist sanitizer; store may be nil for one-shot use.
func (c *components) sanitizer(store *hls.Store, urlFor func(hls.Handle) string) *hls.Sanitizer {
	opts := []hls.Option{
		hls.WithHTTPClient(c.http),
		hls.WithTimeout(c.cfg.PlaylistTimeout),
	}
	if store != nil {
		opts = append(opts, hls.WithStore(store, urlFor))
	}
	return hls.NewSanitizer(opts...)
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}
