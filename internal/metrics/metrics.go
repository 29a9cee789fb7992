package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exported on /metrics.
var (
	// TokensGenerated counts codes produced by rotation loops.
	TokensGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeintern_tokens_generated_total",
		Help: "Attendance codes generated.",
	})

	// Scans counts scan submissions by validation outcome.
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeintern_scans_total",
		Help: "Scan submissions by outcome.",
	}, []string{"outcome"})

	// Toggles counts successful attendance toggles by action.
	Toggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeintern_toggles_total",
		Help: "Attendance toggles by action.",
	}, []string{"action"})
)
