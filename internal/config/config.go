// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the vodagg runtime configuration.
// Precedence is environment, then the YAML file, then built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"
)

// RelayConfig describes one fetch strategy of the proxy-fallback chain.
// Mode is "raw" (target appended verbatim) or "query" (target URL-encoded).
// An empty Prefix is the direct strategy.
type RelayConfig struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
	Mode   string `yaml:"mode"`
}

// CacheConfig configures the detail/poster cache.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	Size          int           `yaml:"size"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
}

// TelemetryConfig configures OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc|http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	SourcesFile string `yaml:"sourcesFile"`
	Listen      string `yaml:"listen"`
	LogLevel    string `yaml:"logLevel"`

	Relays    []RelayConfig `yaml:"relays"`
	HTMLHosts []string      `yaml:"htmlHosts"`

	APITimeout      time.Duration `yaml:"apiTimeout"`
	PlaylistTimeout time.Duration `yaml:"playlistTimeout"`

	SearchConcurrency int `yaml:"searchConcurrency"`

	Cache CacheConfig `yaml:"cache"`

	ScanInterval      time.Duration `yaml:"scanInterval"`
	RelayRatePerMin   int           `yaml:"relayRatePerMinute"`
	PlaylistStoreSize int           `yaml:"playlistStoreSize"`

	// RelayAllowCIDRs re-admits blocked ranges for the /relay endpoint.
	RelayAllowCIDRs   []string `yaml:"relayAllowCIDRs"`
	RelayAllowPrivate bool     `yaml:"relayAllowPrivate"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
}

const (
	ModeRaw   = "raw"
	ModeQuery = "query"
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		SourcesFile: "sources.yaml",
		Listen:      ":8088",
		LogLevel:    "info",
		Relays: []RelayConfig{
			{Name: "direct", Mode: ModeRaw},
			{Name: "allorigins", Prefix: "https://api.allorigins.win/raw?url=", Mode: ModeQuery},
			{Name: "corsproxy", Prefix: "https://corsproxy.io/?", Mode: ModeQuery},
		},
		APITimeout:        15 * time.Second,
		PlaylistTimeout:   8 * time.Second,
		SearchConcurrency: 16,
		Cache: CacheConfig{
			TTL:  10 * time.Minute,
			Size: 2048,
		},
		RelayRatePerMin:   120,
		PlaylistStoreSize: 256,
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// ParseRelays parses "name=prefix|mode" entries separated by commas, as
// used by VODAGG_RELAYS. Mode defaults to raw.
func ParseRelays(raw string) ([]RelayConfig, error) {
	var out []RelayConfig
	for _, entry := range splitList(raw) {
		name, rest, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: relay entry %q must be name=prefix|mode", ErrInvalidConfig, entry)
		}
		prefix, mode, hasMode := strings.Cut(rest, "|")
		if !hasMode {
			mode = ModeRaw
		}
		out = append(out, RelayConfig{
			Name:   strings.TrimSpace(name),
			Prefix: strings.TrimSpace(prefix),
			Mode:   strings.ToLower(strings.TrimSpace(mode)),
		})
	}
	return out, nil
}
