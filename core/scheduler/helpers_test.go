package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func hourRange(t *testing.T, slots int) model.TimeRange {
	t.Helper()
	r, err := model.NewTimeRange(t0, t0.Add(time.Duration(slots)*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	return r
}

func flatForecast(src, dc string, r model.TimeRange, power, renewable float64) model.SourceForecast {
	f := model.SourceForecast{Source: src, DataCenter: dc, Range: r, Slots: make([]model.SourceSlot, r.Slots())}
	for i := range f.Slots {
		f.Slots[i] = model.SourceSlot{Power: power, Renewable: renewable, Carbon: 0.3}
	}
	return f
}

func flatBudget(easc, dc string, r model.TimeRange, power float64) model.PowerBudget {
	b := model.PowerBudget{Easc: easc, DataCenter: dc, Range: r, MaxPower: make([]float64, r.Slots())}
	for i := range b.MaxPower {
		b.MaxPower[i] = power
	}
	b.Quotas = []model.EnergyQuota{{Start: r.Start, End: r.End, MaxEnergy: power * float64(r.Slots()) * r.Hours()}}
	return b
}

func mode(id string, perf, power float64) model.WorkingMode {
	return model.WorkingMode{ID: id, Levels: []model.PerformanceLevel{{Performance: perf, Power: power}}}
}

// onOff is a single data center activity that is either idle or running.
func onOff(name, dc string, perf, power float64, slos ...model.SLO) model.ActivitySpec {
	return model.ActivitySpec{
		Easc:         "easc1",
		Name:         name,
		Relocability: model.RelocNone,
		DataCenters: []model.DataCenterSpec{{
			DataCenter:  dc,
			DefaultMode: "off",
			Modes:       []model.WorkingMode{mode("off", 0, 0), mode("on", perf, power)},
			SLOs:        slos,
		}},
	}
}

func cumulative(r model.TimeRange, objective float64) model.SLO {
	return model.SLO{Start: r.Start, End: r.End, Kind: model.SLOCumulative, Objective: objective, BasePrice: 1,
		Modifiers: []model.PriceModifier{{Threshold: objective, Modifier: 5}}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.IdealHeuristic = false
	return cfg
}

func solve(t *testing.T, p Problem, cfg Config, opts ...Option) ([]model.EascPlan, model.Statistics) {
	t.Helper()
	plans, stats, err := New(p, cfg, opts...).Solve(testContext(t))
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	return plans, stats
}

func works(t *testing.T, plans []model.EascPlan, activity, dc string) []model.Work {
	t.Helper()
	for _, p := range plans {
		if a, ok := p.Activity(activity); ok {
			return a.Works(dc)
		}
	}
	t.Fatalf("activity %s not planned", activity)
	return nil
}

func modes(ws []model.Work) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Mode
	}
	return out
}

// checkBudgets verifies that the planned power never exceeds the budgets.
func checkBudgets(t *testing.T, plans []model.EascPlan, budgets []model.PowerBudget) {
	t.Helper()
	caps := make(map[string][]float64)
	for _, b := range budgets {
		c := caps[b.DataCenter]
		if len(c) < len(b.MaxPower) {
			c = append(c, make([]float64, len(b.MaxPower)-len(c))...)
		}
		for i, p := range b.MaxPower {
			c[i] += p
		}
		caps[b.DataCenter] = c
	}
	for dc, prof := range model.PowerProfile(plans) {
		for i, p := range prof {
			if p > caps[dc][i]+1e-6 {
				t.Fatalf("%s slot %d: power %.1f over budget %.1f", dc, i, p, caps[dc][i])
			}
		}
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
