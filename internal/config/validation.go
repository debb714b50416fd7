// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net/url"

	pnet "github.com/ManuGH/vodagg/internal/platform/net"
)

// Validate checks the resolved configuration and reports every problem found.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if len(cfg.Relays) == 0 {
		add("at least one relay strategy is required")
	}
	seen := make(map[string]bool, len(cfg.Relays))
	for _, r := range cfg.Relays {
		if seen[r.Name] {
			add("duplicate relay name %q", r.Name)
		}
		seen[r.Name] = true
		if r.Mode != ModeRaw && r.Mode != ModeQuery {
			add("relay %q: mode must be %q or %q, got %q", r.Name, ModeRaw, ModeQuery, r.Mode)
		}
		if r.Prefix != "" {
			if u, err := url.Parse(r.Prefix); err != nil || u.Host == "" {
				add("relay %q: prefix %q is not an absolute URL", r.Name, r.Prefix)
			}
		}
	}
	if cfg.APITimeout <= 0 {
		add("apiTimeout must be positive")
	}
	if cfg.PlaylistTimeout <= 0 {
		add("playlistTimeout must be positive")
	}
	if cfg.SearchConcurrency <= 0 {
		add("searchConcurrency must be positive")
	}
	if cfg.Cache.Size < 0 {
		add("cache.size must not be negative")
	}
	if cfg.ScanInterval < 0 {
		add("scanInterval must not be negative")
	}
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Exporter != "grpc" && cfg.Telemetry.Exporter != "http" {
			add("telemetry.exporter must be grpc or http, got %q", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint is required when tracing is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		add("telemetry.samplingRate must be within [0,1]")
	}
	if _, err := pnet.ParseCIDRs(cfg.RelayAllowCIDRs); err != nil {
		add("relayAllowCIDRs: %v", err)
	}
	if cfg.SourcesFile == "" {
		add("sourcesFile is required")
	}
	return errors.Join(errs...)
}
