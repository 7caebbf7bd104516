// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Outcome labels
const (
	outcomeCompleted = "completed"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeRetry     = "retry"
	outcomeNoRoute   = "no_route"
)

type metrics struct {
	requests  *prometheus.CounterVec
	approvals *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	cursor    prometheus.Gauge
	breaker   *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bridge",
				Subsystem: "relay",
				Name:      "requests_total",
				Help:      "Initiated requests handled by the relay, by target chain and outcome",
			},
			[]string{"target_chain", "outcome"},
		),
		approvals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bridge",
				Subsystem: "relay",
				Name:      "approvals_total",
				Help:      "Validator approvals submitted by the relay",
			},
			[]string{"target_chain"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bridge",
				Subsystem: "relay",
				Name:      "complete_duration_seconds",
				Help:      "Duration of destination Complete calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"target_chain"},
		),
		cursor: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bridge",
			Subsystem: "relay",
			Name:      "cursor",
			Help:      "Index of the next source log to handle",
		}),
		breaker: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "bridge",
				Subsystem: "relay",
				Name:      "breaker_state",
				Help:      "Circuit breaker state per target chain (0=closed, 1=half-open, 2=open)",
			},
			[]string{"target_chain"},
		),
	}
}

func breakerValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
