// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vodagg_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vodagg_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vodagg_http_response_size_bytes",
		Help:    "HTTP response sizes in bytes",
		Buckets: prometheus.ExponentialBuckets(100, 10, 8),
	}, []string{"method", "path"})
)

// HTTPInFlight adjusts the in-flight request gauge by delta.
func HTTPInFlight(delta int) { httpRequestsInFlight.Add(float64(delta)) }

// ObserveHTTPRequest records a served request. path must be a route
// pattern, never a raw URL path.
func ObserveHTTPRequest(method, path, status string, d time.Duration, written int) {
	httpRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
	if written > 0 {
		httpResponseSize.WithLabelValues(method, path).Observe(float64(written))
	}
}
