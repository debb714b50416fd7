// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader("", "v1").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1", cfg.Version)
	assert.Equal(t, 15*time.Second, cfg.APITimeout)
	assert.Equal(t, 8*time.Second, cfg.PlaylistTimeout)
	require.NotEmpty(t, cfg.Relays)
	assert.Equal(t, "direct", cfg.Relays[0].Name)
	assert.Empty(t, cfg.Relays[0].Prefix)
}

func TestLoader_Precedence(t *testing.T) {
	path := writeConfig(t, `
sourcesFile: /data/sources.yaml
apiTimeout: 20s
searchConcurrency: 4
cache:
  ttl: 1m
  size: 10
htmlHosts: [file.example]
`)
	t.Setenv("VODAGG_SEARCH_CONCURRENCY", "8")
	t.Setenv("VODAGG_RELAYS", "direct=|raw,mirror=https://relay.example/?url=|query")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/sources.yaml", cfg.SourcesFile, "file beats default")
	assert.Equal(t, 20*time.Second, cfg.APITimeout)
	assert.Equal(t, 8, cfg.SearchConcurrency, "env beats file")
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10, cfg.Cache.Size)
	assert.Equal(t, []string{"file.example"}, cfg.HTMLHosts)
	assert.Equal(t, []RelayConfig{
		{Name: "direct", Prefix: "", Mode: ModeRaw},
		{Name: "mirror", Prefix: "https://relay.example/?url=", Mode: ModeQuery},
	}, cfg.Relays)
	assert.Contains(t, l.ConsumedEnvKeys, "VODAGG_RELAYS")
}

func TestLoader_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "unknownKey: 1\n")
	_, err := NewLoader(path, "dev").Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoader_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	_, err := NewLoader(path, "dev").Load()
	assert.NoError(t, err)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "dev").Load()
	assert.Error(t, err)
}

func TestParseRelays(t *testing.T) {
	relays, err := ParseRelays("a=https://x.example/|QUERY, b=https://y.example/")
	require.NoError(t, err)
	assert.Equal(t, []RelayConfig{
		{Name: "a", Prefix: "https://x.example/", Mode: ModeQuery},
		{Name: "b", Prefix: "https://y.example/", Mode: ModeRaw},
	}, relays)

	_, err = ParseRelays("no-equals-sign")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, Validate(cfg))

	cfg.Relays = append(cfg.Relays, RelayConfig{Name: "direct", Mode: "zip", Prefix: "not a url"})
	cfg.SearchConcurrency = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	msg := err.Error()
	assert.Contains(t, msg, `duplicate relay name "direct"`)
	assert.Contains(t, msg, "mode must be")
	assert.Contains(t, msg, "not an absolute URL")
	assert.Contains(t, msg, "searchConcurrency")
}

func TestValidate_Telemetry(t *testing.T) {
	cfg := Defaults()
	cfg.Telemetry = TelemetryConfig{Enabled: true, Exporter: "zipkin", SamplingRate: 2}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telemetry.exporter")
	assert.Contains(t, err.Error(), "telemetry.endpoint")
	assert.Contains(t, err.Error(), "samplingRate")
}

func TestLoader_TelemetryFromEnv(t *testing.T) {
	t.Setenv("VODAGG_TRACING", "true")
	t.Setenv("VODAGG_OTLP_EXPORTER", "http")
	t.Setenv("VODAGG_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("VODAGG_TRACE_SAMPLING", "0.1")

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	assert.Equal(t, TelemetryConfig{Enabled: true, Exporter: "http", Endpoint: "collector:4318", SamplingRate: 0.1}, cfg.Telemetry)
}

func TestLoader_RelayPolicyFromEnv(t *testing.T) {
	t.Setenv("VODAGG_RELAY_ALLOW_CIDRS", "192.168.1.0/24, 10.0.0.5")
	t.Setenv("VODAGG_RELAY_ALLOW_PRIVATE", "true")

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"192.168.1.0/24", "10.0.0.5"}, cfg.RelayAllowCIDRs)
	assert.True(t, cfg.RelayAllowPrivate)

	cfg.RelayAllowCIDRs = []string{"lan"}
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relayAllowCIDRs")
}
