package consolidator

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	runWindows     prometheus.Gauge
	windowSolve    *prometheus.HistogramVec
	objectiveValue prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Gauge, *prometheus.HistogramVec, prometheus.Gauge) {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolidation_runs_total",
			Help: "Number of consolidations by final status",
		},
		[]string{"status"},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "consolidation_duration_seconds",
			Help:    "Wall-clock duration of a consolidation",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)
	win := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "consolidation_windows",
			Help: "Number of windows of the last consolidation",
		},
	)
	solve := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consolidation_window_solve_seconds",
			Help:    "Solve time of a single window",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"status"},
	)
	obj := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "consolidation_objective_value",
			Help: "Best objective value of the last consolidation",
		},
	)
	return runs, dur, win, solve, obj
}

func init() {
	runsTotal, runDuration, runWindows, windowSolve, objectiveValue = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers consolidation metrics on the provided
// registry. If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(runsTotal, runDuration, runWindows, windowSolve, objectiveValue)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	runsTotal, runDuration, runWindows, windowSolve, objectiveValue = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
