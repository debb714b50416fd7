// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vodagg_breaker_state",
		Help: "Breaker state per guarded relay: 0 closed, 1 half-open, 2 open",
	}, []string{"breaker"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vodagg_breaker_transitions_total",
		Help: "Breaker state changes; to=\"open\" counts trips",
	}, []string{"breaker", "from", "to"})
)

var breakerLevels = map[string]float64{"closed": 0, "half-open": 1, "open": 2}

// SetBreakerState publishes the current state of a breaker.
func SetBreakerState(breaker, state string) {
	breakerState.WithLabelValues(breaker).Set(breakerLevels[state])
}

// RecordBreakerTransition counts a state change and publishes the new state.
func RecordBreakerTransition(breaker, from, to string) {
	breakerTransitions.WithLabelValues(breaker, from, to).Inc()
	SetBreakerState(breaker, to)
}
