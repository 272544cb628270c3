package metrics

import (
	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes the outcome of consolidation runs as Prometheus metrics.
type PromSink struct {
	brown     prometheus.Gauge
	carbon    prometheus.Gauge
	lastRun   prometheus.Gauge
	nodes     *prometheus.HistogramVec
	energy    *prometheus.GaugeVec
	peak      *prometheus.GaugeVec
	fallbacks *prometheus.CounterVec
}

// NewPromSink registers run metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusAddr.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		brown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plan_brown_energy_wh",
			Help: "Non-renewable energy of the last consolidated plan",
		}),
		carbon: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plan_carbon",
			Help: "Carbon emissions of the last consolidated plan",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plan_last_success_timestamp_seconds",
			Help: "Time of the last consolidation that produced a plan",
		}),
		nodes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "window_search_nodes",
			Help:    "Search nodes explored per window",
			Buckets: prometheus.ExponentialBuckets(10, 4, 10),
		}, []string{"status"}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "planned_energy_wh",
			Help: "Energy planned per data center over the last consolidated range",
		}, []string{"data_center"}),
		peak: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "planned_peak_power_watts",
			Help: "Highest slot power planned per data center",
		}, []string{"data_center"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plan_fallbacks_total",
			Help: "Number of times the previous plan replaced a failed consolidation",
		}, []string{"reused"}),
	}
	var err error
	if s.brown, err = register(reg, s.brown); err != nil {
		return nil, err
	}
	if s.carbon, err = register(reg, s.carbon); err != nil {
		return nil, err
	}
	if s.lastRun, err = register(reg, s.lastRun); err != nil {
		return nil, err
	}
	if s.nodes, err = register(reg, s.nodes); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, s.energy); err != nil {
		return nil, err
	}
	if s.peak, err = register(reg, s.peak); err != nil {
		return nil, err
	}
	if s.fallbacks, err = register(reg, s.fallbacks); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the collector already registered under the same
// descriptor, if any.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun updates the plan gauges for successful runs.
func (s *PromSink) RecordRun(r coremetrics.RunRecord) error {
	if r.Err != "" {
		return nil
	}
	s.brown.Set(r.BrownEnergy)
	s.carbon.Set(r.Carbon)
	s.lastRun.Set(float64(r.Time.Unix()))
	return nil
}

// RecordWindow observes the search effort of a window.
func (s *PromSink) RecordWindow(w coremetrics.WindowRecord) error {
	s.nodes.WithLabelValues(w.Status.String()).Observe(float64(w.Nodes))
	return nil
}

// RecordPlannedPower sets the energy and peak gauges of each data center.
func (s *PromSink) RecordPlannedPower(ps []coremetrics.PlannedPower) error {
	for _, p := range ps {
		total, peak := 0.0, 0.0
		for _, v := range p.Power {
			total += v
			peak = max(peak, v)
		}
		s.energy.WithLabelValues(p.DataCenter).Set(total * p.Range.Hours())
		s.peak.WithLabelValues(p.DataCenter).Set(peak)
	}
	return nil
}

// RecordFallback counts fallbacks.
func (s *PromSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	reused := "false"
	if ev.Reused {
		reused = "true"
	}
	s.fallbacks.WithLabelValues(reused).Inc()
	return nil
}
