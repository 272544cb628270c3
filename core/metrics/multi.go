package metrics

import (
	"errors"

	"github.com/kilianp07/consolidator/core/metrics/eco"
	"github.com/kilianp07/consolidator/core/model"
)

// MultiSink fans records out to several sinks. Optional recorders are only
// forwarded to the sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards to every sink and joins their errors.
func (m *MultiSink) RecordRun(r RunRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordRun(r))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordWindow(w WindowRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(WindowRecorder); ok {
			errs = append(errs, rec.RecordWindow(w))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordTrace(runID string, scores []model.Score) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(TraceRecorder); ok {
			errs = append(errs, rec.RecordTrace(runID, scores))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordPlannedPower(p []PlannedPower) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(PowerRecorder); ok {
			errs = append(errs, rec.RecordPlannedPower(p))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordFallback(ev FallbackEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(FallbackRecorder); ok {
			errs = append(errs, rec.RecordFallback(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordEco(recs []eco.Record) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(EcoRecorder); ok {
			errs = append(errs, rec.RecordEco(recs))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordLiveMetric(l model.LiveMetric) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(LiveMetricRecorder); ok {
			errs = append(errs, rec.RecordLiveMetric(l))
		}
	}
	return errors.Join(errs...)
}
