package metrics

import "github.com/kilianp07/consolidator/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr is the listen address of the /metrics endpoint. Empty
	// disables the server.
	PrometheusAddr string `json:"prometheus_addr"`
	// EmissionFactor converts brown energy (Wh) into grams of CO2 for eco
	// KPIs.
	EmissionFactor float64 `json:"emission_factor"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.EmissionFactor == 0 {
		c.EmissionFactor = 0.4
	}
}
