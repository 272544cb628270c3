package metrics

import (
	"time"

	"github.com/kilianp07/consolidator/core/metrics/eco"
	"github.com/kilianp07/consolidator/core/model"
)

// RunRecord summarises one consolidation.
type RunRecord struct {
	RunID       string
	Range       model.TimeRange
	Windows     int
	Status      model.Status
	Objective   float64
	Solved      bool
	BrownEnergy float64
	Carbon      float64
	Duration    time.Duration
	Err         string
	Time        time.Time
}

// MetricsSink records consolidation runs for observability purposes.
type MetricsSink interface {
	RecordRun(RunRecord) error
}

// WindowRecord describes the solve of one window.
type WindowRecord struct {
	RunID     string
	Window    model.TimeRange
	Status    model.Status
	Nodes     int64
	Objective float64
	Solved    bool
	Duration  time.Duration
}

// WindowRecorder records per-window solves.
type WindowRecorder interface {
	RecordWindow(WindowRecord) error
}

// TraceRecorder records the merged anytime trace of a run.
type TraceRecorder interface {
	RecordTrace(runID string, scores []model.Score) error
}

// PlannedPower is the power planned in a data center over a range, one value
// per slot.
type PlannedPower struct {
	RunID      string
	DataCenter string
	Range      model.TimeRange
	Power      []float64
}

// PowerRecorder records the planned power profiles.
type PowerRecorder interface {
	RecordPlannedPower([]PlannedPower) error
}

// FallbackEvent is emitted when a run produced no usable plan and the
// previous plan was reused.
type FallbackEvent struct {
	RunID  string
	Reason string
	Reused bool
	Time   time.Time
}

// FallbackRecorder records fallbacks.
type FallbackRecorder interface {
	RecordFallback(FallbackEvent) error
}

// EcoRecorder records daily renewable and brown energy KPIs.
type EcoRecorder interface {
	RecordEco([]eco.Record) error
}

// LiveMetricRecorder records the live state reported by EASCs.
type LiveMetricRecorder interface {
	RecordLiveMetric(model.LiveMetric) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunRecord) error               { return nil }
func (NopSink) RecordWindow(WindowRecord) error         { return nil }
func (NopSink) RecordTrace(string, []model.Score) error { return nil }
func (NopSink) RecordPlannedPower([]PlannedPower) error { return nil }
func (NopSink) RecordFallback(FallbackEvent) error      { return nil }
func (NopSink) RecordEco([]eco.Record) error            { return nil }
func (NopSink) RecordLiveMetric(model.LiveMetric) error { return nil }
