package app

import "github.com/prometheus/client_golang/prometheus"

var (
	planPublish   *prometheus.CounterVec
	loopIteration *prometheus.CounterVec
)

func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec) {
	pub := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_publish_total",
			Help: "Plans sent to EASCs by outcome",
		},
		[]string{"result"},
	)
	it := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consolidation_loop_iterations_total",
			Help: "Control loop iterations by outcome",
		},
		[]string{"result"},
	)
	return pub, it
}

func init() {
	planPublish, loopIteration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers the service metrics on reg, the default
// registerer when nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(planPublish, loopIteration)
}

// ResetMetrics recreates the collectors for tests and registers them on reg
// when not nil.
func ResetMetrics(reg prometheus.Registerer) {
	planPublish, loopIteration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
