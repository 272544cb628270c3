package consolidator

import (
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/scheduler"
	"github.com/kilianp07/consolidator/internal/eventbus"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

func instant(from, to int) model.SLO {
	return model.SLO{Start: at(from), End: at(to), Kind: model.SLOInstant, Objective: 1, BasePrice: 1}
}

// sixHours has one activity with an SLO every two hours and a per-slot
// budget, so the splitter may cut on every hour.
func sixHours(t *testing.T) scheduler.Problem {
	t.Helper()
	r, err := model.NewTimeRange(t0, at(6), time.Hour)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	f := model.SourceForecast{Source: "grid", DataCenter: "dc1", Range: r, Slots: make([]model.SourceSlot, 6)}
	b := model.PowerBudget{Easc: "easc1", DataCenter: "dc1", Range: r, MaxPower: make([]float64, 6)}
	for i := 0; i < 6; i++ {
		f.Slots[i] = model.SourceSlot{Power: 100, Renewable: 0.5}
		b.MaxPower[i] = 50
		b.Quotas = append(b.Quotas, model.EnergyQuota{Start: r.SlotStart(i), End: r.SlotStart(i + 1), MaxEnergy: 50})
	}
	act := model.ActivitySpec{
		Easc:         "easc1",
		Name:         "A",
		Relocability: model.RelocNone,
		DataCenters: []model.DataCenterSpec{{
			DataCenter:  "dc1",
			DefaultMode: "off",
			Modes: []model.WorkingMode{
				{ID: "off", Levels: []model.PerformanceLevel{{}}},
				{ID: "on", Levels: []model.PerformanceLevel{{Performance: 1, Power: 10}}},
			},
			SLOs: []model.SLO{instant(0, 2), instant(2, 4), instant(4, 6)},
		}},
	}
	return scheduler.Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{f},
		Budgets:    []model.PowerBudget{b},
		Activities: []model.ActivitySpec{act},
	}
}

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(e eventbus.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *recordingBus) Subscribe() <-chan eventbus.Event { return nil }
func (b *recordingBus) Unsubscribe(<-chan eventbus.Event) {}
func (b *recordingBus) Close()                            {}

func (b *recordingBus) all() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventbus.Event(nil), b.events...)
}

type recordingSink struct {
	mu      sync.Mutex
	runs    []metrics.RunRecord
	windows []metrics.WindowRecord
	traces  map[string][]model.Score
	power   []metrics.PlannedPower
}

func (s *recordingSink) RecordRun(r metrics.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, r)
	return nil
}

func (s *recordingSink) RecordWindow(r metrics.WindowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, r)
	return nil
}

func (s *recordingSink) RecordTrace(runID string, scores []model.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.traces == nil {
		s.traces = make(map[string][]model.Score)
	}
	s.traces[runID] = scores
	return nil
}

func (s *recordingSink) RecordPlannedPower(p []metrics.PlannedPower) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.power = append(s.power, p...)
	return nil
}
