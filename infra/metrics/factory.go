package metrics

import (
	"github.com/kilianp07/consolidator/core/factory"
	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/metrics/eco"
	"github.com/prometheus/client_golang/prometheus"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(coremetrics.Config{}, prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})

	_ = coremetrics.RegisterMetricsSink("eco", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			EmissionFactor float64 `json:"emission_factor"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.EmissionFactor == 0 {
			c.EmissionFactor = 0.4
		}
		return NewEcoSink(eco.NewMemoryStore(), c.EmissionFactor, prometheus.DefaultRegisterer)
	})
}
