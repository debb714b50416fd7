// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load resolves defaults, overlays the file, overlays the environment and
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.mergeFile(&cfg); err != nil {
			return AppConfig{}, err
		}
	}
	if err := l.mergeEnv(&cfg); err != nil {
		return AppConfig{}, err
	}
	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (l *Loader) mergeFile(cfg *AppConfig) error {
	data, err := os.ReadFile(filepath.Clean(l.configPath))
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, l.configPath, err)
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) error {
	cfg.SourcesFile = l.envString("VODAGG_SOURCES_FILE", cfg.SourcesFile)
	cfg.Listen = l.envString("VODAGG_LISTEN", cfg.Listen)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.APITimeout = l.envDuration("VODAGG_API_TIMEOUT", cfg.APITimeout)
	cfg.PlaylistTimeout = l.envDuration("VODAGG_PLAYLIST_TIMEOUT", cfg.PlaylistTimeout)
	cfg.SearchConcurrency = l.envInt("VODAGG_SEARCH_CONCURRENCY", cfg.SearchConcurrency)
	cfg.Cache.TTL = l.envDuration("VODAGG_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Size = l.envInt("VODAGG_CACHE_SIZE", cfg.Cache.Size)
	cfg.Cache.RedisAddr = l.envString("VODAGG_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString("VODAGG_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.ScanInterval = l.envDuration("VODAGG_SCAN_INTERVAL", cfg.ScanInterval)
	cfg.RelayRatePerMin = l.envInt("VODAGG_RELAY_RATE", cfg.RelayRatePerMin)
	cfg.RelayAllowCIDRs = l.envList("VODAGG_RELAY_ALLOW_CIDRS", cfg.RelayAllowCIDRs)
	cfg.RelayAllowPrivate = l.envBool("VODAGG_RELAY_ALLOW_PRIVATE", cfg.RelayAllowPrivate)
	cfg.Telemetry.Enabled = l.envBool("VODAGG_TRACING", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("VODAGG_OTLP_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("VODAGG_OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("VODAGG_TRACE_SAMPLING", cfg.Telemetry.SamplingRate)
	cfg.HTMLHosts = l.envList("VODAGG_HTML_HOSTS", cfg.HTMLHosts)

	if raw, ok := l.envLookup("VODAGG_RELAYS"); ok && raw != "" {
		relays, err := ParseRelays(raw)
		if err != nil {
			return err
		}
		cfg.Relays = relays
	}
	return nil
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

func (l *Loader) envLookup(key string) (string, bool) {
	l.ConsumedEnvKeys[key] = struct{}{}
	return os.LookupEnv(key)
}
