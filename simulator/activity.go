package main

import (
	"sync"
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

// Activity simulates one activity of an EASC in one data center. It runs the
// working mode of the last applied plan.
type Activity struct {
	Name       string
	DataCenter string
	spec       model.DataCenterSpec

	mu    sync.Mutex
	plan  []model.Work
	rng   model.TimeRange
	mode  string
	level model.PerformanceLevel
}

// NewActivity starts the activity in its default mode at the highest level.
func NewActivity(name string, spec model.DataCenterSpec) *Activity {
	a := &Activity{Name: name, DataCenter: spec.DataCenter, spec: spec}
	a.set(spec.DefaultMode, -1)
	return a
}

// set switches to mode at level, the last level when level is out of range.
// Unknown modes are ignored.
func (a *Activity) set(mode string, level int) bool {
	m, ok := a.spec.Mode(mode)
	if !ok || len(m.Levels) == 0 {
		return false
	}
	if level < 0 || level >= len(m.Levels) {
		level = len(m.Levels) - 1
	}
	a.mode = mode
	a.level = m.Levels[level]
	return true
}

// Apply stores the works planned for the activity over r.
func (a *Activity) Apply(r model.TimeRange, works []model.Work) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rng = r
	a.plan = append([]model.Work(nil), works...)
}

// Advance switches to the work covering now. Outside of the plan range the
// current mode is kept.
func (a *Activity) Advance(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.plan) == 0 || !a.rng.Contains(now) {
		return
	}
	slot := a.rng.SlotIndex(now)
	for _, w := range a.plan {
		if slot >= w.StartSlot && slot < w.EndSlot {
			a.set(w.Mode, w.Level)
			return
		}
	}
}

// Sample reports the live state with the power and performance scaled by
// load.
func (a *Activity) Sample(easc string, load float64, at time.Time) model.LiveMetric {
	a.mu.Lock()
	defer a.mu.Unlock()
	return model.LiveMetric{
		Easc:        easc,
		Activity:    a.Name,
		DataCenter:  a.DataCenter,
		Mode:        a.mode,
		Power:       a.level.Power * load,
		Performance: a.level.Performance * load,
		At:          at,
	}
}

// Mode returns the current working mode.
func (a *Activity) Mode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}
