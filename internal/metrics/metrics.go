// Package metrics defines the Prometheus collectors exported by applock.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session Metrics
var (
	// SessionsStarted tracks start attempts by result ("ok" or a failure tag)
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applock_session_starts_total",
			Help: "Session start attempts by result",
		},
		[]string{"result"},
	)

	// SessionsEnded tracks ended sessions by end reason
	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applock_sessions_ended_total",
			Help: "Ended sessions by end reason",
		},
		[]string{"reason"},
	)

	// SessionActive is 1 while a session is running
	SessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "applock_session_active",
			Help: "Whether a focus session is currently running (0/1)",
		},
	)

	// StartDuration tracks how long the start sequence takes
	StartDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "applock_session_start_duration_seconds",
			Help:    "Duration of the session start sequence in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
	)
)

// Enforcement Metrics
var (
	// PinTicks tracks enforcement ticks by outcome
	PinTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applock_pin_ticks_total",
			Help: "Window pinning ticks by outcome (ok/failed/window_gone/stale)",
		},
		[]string{"outcome"},
	)

	// WatchdogChecks tracks invariant checks by verdict
	WatchdogChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applock_watchdog_checks_total",
			Help: "Coverage invariant checks by verdict (ok/violated/error)",
		},
		[]string{"verdict"},
	)

	// CoverageRegions tracks the number of live coverage regions
	CoverageRegions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "applock_coverage_regions",
			Help: "Number of coverage regions currently materialized",
		},
	)

	// TeardownErrors tracks failures of individual teardown steps
	TeardownErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applock_teardown_errors_total",
			Help: "Teardown step failures by step",
		},
		[]string{"step"},
	)
)
