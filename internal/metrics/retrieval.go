// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Relay (proxy-fallback fetch) metrics
	relayAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodagg_relay_attempts_total",
		Help: "Fetch attempts per transport strategy by outcome",
	}, []string{"strategy", "outcome"}) // outcome=success|timeout|network|invalid_payload|circuit_open|canceled

	relayAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vodagg_relay_attempt_duration_seconds",
		Help:    "Duration of a single relay attempt",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
	}, []string{"strategy"})

	relayExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodagg_relay_exhausted_total",
		Help: "Fetches that failed on every strategy",
	}, []string{"kind"}) // kind=api|playlist

	// CMS parser metrics
	cmsPayloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodagg_cms_payloads_total",
		Help: "Decoded CMS payloads by detected format and outcome",
	}, []string{"format", "outcome"}) // format=json|xml|unknown

	// Aggregate search metrics
	searchSourceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodagg_search_source_total",
		Help: "Per-source outcomes of aggregate search fan-out",
	}, []string{"outcome"}) // outcome=ok|empty|error

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vodagg_search_duration_seconds",
		Help:    "Wall time of a full aggregate search (all branches settled)",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
	})

	searchSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodagg_search_superseded_total",
		Help: "Aggregate searches discarded because a newer query started",
	})

	// Playlist sanitizer metrics
	sanitizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodagg_sanitize_total",
		Help: "Playlist sanitization outcomes",
	}, []string{"outcome"}) // outcome=stripped|unchanged|low_ratio|failed

	sanitizeRemovedSegments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vodagg_sanitize_removed_segments_total",
		Help: "Segments removed from playlists by the sanitizer",
	})

	// Source scanner metrics
	scanSourcesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodagg_scan_sources_total",
		Help: "Source health scan classifications",
	}, []string{"status"}) // status=working|dead|duplicate

	scanLastWorking = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vodagg_scan_last_working_sources",
		Help: "Working sources found by the most recent completed scan",
	})

	// Cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodagg_cache_lookups_total",
		Help: "Detail/poster cache lookups by result",
	}, []string{"cache", "result"}) // result=hit|miss
)

// RecordRelayAttempt records a single strategy attempt.
func RecordRelayAttempt(strategy, outcome string, d time.Duration) {
	relayAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
	relayAttemptDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// IncRelayExhausted records a fetch that failed on every strategy.
func IncRelayExhausted(kind string) { relayExhaustedTotal.WithLabelValues(kind).Inc() }

// IncCMSPayload records a decoded (or rejected) CMS payload.
func IncCMSPayload(format, outcome string) { cmsPayloadsTotal.WithLabelValues(format, outcome).Inc() }

// IncSearchSource records the outcome of one fan-out branch.
func IncSearchSource(outcome string) { searchSourceTotal.WithLabelValues(outcome).Inc() }

// ObserveSearchDuration records the full settle time of an aggregate search.
func ObserveSearchDuration(d time.Duration) { searchDuration.Observe(d.Seconds()) }

// IncSearchSuperseded records a discarded stale search.
func IncSearchSuperseded() { searchSupersededTotal.Inc() }

// RecordSanitize records a sanitizer outcome and the number of removed segments.
func RecordSanitize(outcome string, removed int) {
	sanitizeTotal.WithLabelValues(outcome).Inc()
	if removed > 0 {
		sanitizeRemovedSegments.Add(float64(removed))
	}
}

// IncScanSource records one scanner classification.
func IncScanSource(status string) { scanSourcesTotal.WithLabelValues(status).Inc() }

// SetScanWorking records the working-source count of the last scan.
func SetScanWorking(n int) { scanLastWorking.Set(float64(n)) }

// IncCacheLookup records a cache hit or miss.
func IncCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}
