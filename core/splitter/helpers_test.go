package splitter

import (
	"testing"
	"time"

	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/scheduler"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

func hourRange(t *testing.T, slots int) model.TimeRange {
	t.Helper()
	r, err := model.NewTimeRange(t0, at(slots), time.Hour)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return r
}

func flatForecast(src, dc string, r model.TimeRange, power, renewable float64) model.SourceForecast {
	f := model.SourceForecast{Source: src, DataCenter: dc, Range: r, Slots: make([]model.SourceSlot, r.Slots())}
	for i := range f.Slots {
		f.Slots[i] = model.SourceSlot{Power: power, Renewable: renewable}
	}
	return f
}

// hourlyBudget has one quota per slot so it never couples slots.
func hourlyBudget(easc, dc string, r model.TimeRange, power float64) model.PowerBudget {
	b := model.PowerBudget{Easc: easc, DataCenter: dc, Range: r, MaxPower: make([]float64, r.Slots())}
	for i := range b.MaxPower {
		b.MaxPower[i] = power
		b.Quotas = append(b.Quotas, model.EnergyQuota{Start: r.SlotStart(i), End: r.SlotStart(i + 1), MaxEnergy: power * r.Hours()})
	}
	return b
}

func instant(from, to int) model.SLO {
	return model.SLO{Start: at(from), End: at(to), Kind: model.SLOInstant, Objective: 1, BasePrice: 1}
}

func activity(name string, slos ...model.SLO) model.ActivitySpec {
	return model.ActivitySpec{
		Easc:         "easc1",
		Name:         name,
		Relocability: model.RelocNone,
		DataCenters: []model.DataCenterSpec{{
			DataCenter:  "dc1",
			DefaultMode: "off",
			Modes: []model.WorkingMode{
				{ID: "off", Levels: []model.PerformanceLevel{{}}},
				{ID: "on", Levels: []model.PerformanceLevel{{Performance: 1, Power: 10}}},
			},
			SLOs: slos,
		}},
	}
}

// problem has no budget so that only the activities and forecasts yield
// candidates.
func problem(t *testing.T, slots int, acts ...model.ActivitySpec) scheduler.Problem {
	t.Helper()
	r := hourRange(t, slots)
	return scheduler.Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("grid", "dc1", r, 100, 0.5)},
		Activities: acts,
	}
}

func hours(ts []time.Time) []int {
	out := make([]int, len(ts))
	for i, t := range ts {
		out[i] = int(t.Sub(t0) / time.Hour)
	}
	return out
}
