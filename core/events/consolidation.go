package events

import (
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

// IncumbentEvent is published each time a window improves its best solution.
type IncumbentEvent struct {
	RunID  string
	Window model.TimeRange
	Value  float64
	At     time.Time
}

// WindowSolvedEvent is published when a window scheduler returns.
type WindowSolvedEvent struct {
	RunID  string
	Window model.TimeRange
	Stats  model.Statistics
	Err    error
}

// ConsolidationEvent is published at the end of each consolidation. Err is
// set when no usable plan was produced.
type ConsolidationEvent struct {
	RunID    string
	Range    model.TimeRange
	Windows  int
	Stats    model.Statistics
	Duration time.Duration
	Err      error
}

// FallbackEvent is published when the previous plan replaces a failed
// consolidation.
type FallbackEvent struct {
	RunID  string
	Reason string
	Reused bool
}
