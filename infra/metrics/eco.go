package metrics

import (
	"github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/metrics/eco"
	"github.com/prometheus/client_golang/prometheus"
)

// EcoSink stores daily energy KPIs and exposes them as gauges.
type EcoSink struct {
	metrics.NopSink
	store     eco.Store
	factor    float64
	renewable *prometheus.GaugeVec
	share     *prometheus.GaugeVec
	co2       *prometheus.GaugeVec
}

// NewEcoSink creates a sink with Prometheus gauges registered on reg.
func NewEcoSink(store eco.Store, factor float64, reg prometheus.Registerer) (*EcoSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &EcoSink{
		store:  store,
		factor: factor,
		renewable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "datacenter_renewable_energy_wh",
			Help: "Daily renewable energy planned per data center",
		}, []string{"data_center", "day"}),
		share: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "datacenter_renewable_share",
			Help: "Daily renewable share of the planned energy",
		}, []string{"data_center", "day"}),
		co2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "datacenter_co2_avoided_grams",
			Help: "Daily CO2 avoided per data center",
		}, []string{"data_center", "day"}),
	}
	var err error
	if s.renewable, err = register(reg, s.renewable); err != nil {
		return nil, err
	}
	if s.share, err = register(reg, s.share); err != nil {
		return nil, err
	}
	if s.co2, err = register(reg, s.co2); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordEco adds the records to the store and refreshes the gauges with the
// stored daily totals.
func (s *EcoSink) RecordEco(recs []eco.Record) error {
	for _, r := range recs {
		if err := s.store.Add(r); err != nil {
			return err
		}
		day := eco.Day(r.Date)
		stored, err := s.store.Query(r.DataCenter, day, day)
		if err != nil {
			return err
		}
		if len(stored) == 0 {
			continue
		}
		rr := stored[0]
		label := day.Format("2006-01-02")
		s.renewable.WithLabelValues(r.DataCenter, label).Set(rr.RenewableWh)
		s.share.WithLabelValues(r.DataCenter, label).Set(rr.RenewableShare())
		s.co2.WithLabelValues(r.DataCenter, label).Set(rr.CO2Avoided(s.factor))
	}
	return nil
}
