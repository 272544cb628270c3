package splitter

import (
	"reflect"
	"testing"
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

func TestCandidatesFromSLOWindows(t *testing.T) {
	p := problem(t, 6, activity("A", instant(0, 2), instant(2, 4), instant(4, 6)))
	if got := hours(Points(p, Pass{})); !reflect.DeepEqual(got, []int{2, 4}) {
		t.Fatalf("expected cuts at 2h and 4h got %v", got)
	}
}

func TestCandidatesFromForecastAndBudget(t *testing.T) {
	p := problem(t, 4)
	p.Forecasts[0].Slots[3].Renewable = 1
	b := hourlyBudget("easc1", "dc1", p.Window, 100)
	b.Quotas = []model.EnergyQuota{{Start: at(0), End: at(4), MaxEnergy: 400}}
	b.MaxPower[1] = 50
	p.Budgets = []model.PowerBudget{b}
	got := hours(Candidates(p))
	if !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Fatalf("unexpected candidates %v", got)
	}
}

func TestCandidatesAreSnappedToSlots(t *testing.T) {
	slo := instant(0, 2)
	slo.End = t0.Add(150 * time.Minute)
	next := model.SLO{Start: slo.End, End: at(4), Kind: model.SLOInstant}
	p := problem(t, 4, activity("A", slo, next))
	if got := hours(Candidates(p)); !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("expected a cut at 2h got %v", got)
	}
}

func TestCumulativeSLOCouplesSlots(t *testing.T) {
	cum := model.SLO{Start: at(0), End: at(4), Kind: model.SLOCumulative, Objective: 2}
	tail := model.SLO{Start: at(4), End: at(6), Kind: model.SLOCumulative, Objective: 1}
	p := problem(t, 6, activity("A", cum, tail), activity("B", instant(0, 1), instant(1, 2), instant(2, 6)))
	if got := hours(Points(p, Pass{})); !reflect.DeepEqual(got, []int{4}) {
		t.Fatalf("expected only the cut at 4h got %v", got)
	}
}

func TestQuotaCouplesSlots(t *testing.T) {
	p := problem(t, 4, activity("A", instant(0, 1), instant(1, 2), instant(2, 3), instant(3, 4)))
	b := hourlyBudget("easc1", "dc1", p.Window, 100)
	b.Quotas = []model.EnergyQuota{{Start: at(0), End: at(3), MaxEnergy: 100}, {Start: at(3), End: at(4), MaxEnergy: 100}}
	p.Budgets = []model.PowerBudget{b}
	if got := hours(Points(p, Pass{})); !reflect.DeepEqual(got, []int{3}) {
		t.Fatalf("expected only the quota boundary got %v", got)
	}
}

func TestEnergyObjectiveCouplesSlots(t *testing.T) {
	p := problem(t, 4, activity("A", instant(0, 1), instant(1, 2), instant(2, 3), instant(3, 4)))
	p.Objectives = []model.Objective{{
		Name: "evening", DataCenter: "dc1", Metric: model.MetricEnergy, Target: 10,
		Frame: model.TimeFrame{Start: at(1), End: at(3)},
	}}
	if got := hours(Points(p, Pass{})); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("expected cuts around the objective got %v", got)
	}
}

func TestPrecedenceRegion(t *testing.T) {
	b := activity("B", instant(0, 2))
	a := activity("A", instant(2, 4), instant(4, 6))
	a.Precedences = []string{"B"}
	p := problem(t, 6, a, b)
	if got := hours(Points(p, Pass{})); !reflect.DeepEqual(got, []int{2, 4}) {
		t.Fatalf("expected B's completion to be a cut got %v", got)
	}

	// A successor without SLO may run at any time: nothing before B's
	// completion can be cut.
	free := activity("A")
	free.Precedences = []string{"B"}
	b = activity("B", instant(0, 3), instant(3, 5))
	p = problem(t, 6, free, b)
	if got := hours(Points(p, Pass{})); !reflect.DeepEqual(got, []int{5}) {
		t.Fatalf("expected only the cut at B's completion got %v", got)
	}
}

func TestWindowsTileRange(t *testing.T) {
	r := hourRange(t, 6)
	cases := [][]time.Time{
		nil,
		{at(3)},
		{at(5), at(1), at(3), at(3)},
		{at(0), at(6), at(7)},
	}
	for _, pts := range cases {
		ws := Windows(r, pts)
		if !ws[0].Start.Equal(r.Start) || !ws[len(ws)-1].End.Equal(r.End) {
			t.Fatalf("windows %v do not span %s", ws, r)
		}
		for i := 1; i < len(ws); i++ {
			if !ws[i].Start.Equal(ws[i-1].End) {
				t.Fatalf("gap or overlap between %s and %s", ws[i-1], ws[i])
			}
		}
		slots := 0
		for _, w := range ws {
			if w.Slots() == 0 || w.Slot != r.Slot {
				t.Fatalf("bad window %s", w)
			}
			slots += w.Slots()
		}
		if slots != r.Slots() {
			t.Fatalf("expected %d slots got %d", r.Slots(), slots)
		}
	}
	if len(Windows(r, []time.Time{at(5), at(1), at(3), at(3)})) != 4 {
		t.Fatalf("expected 4 windows")
	}
}
