package scheduler

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

// Two data centers over two slots: A1 idles in dc1 and works in dc2, reaching
// its cumulative objective of 20 exactly at the end of the SLO window.
func TestSolveTwoDataCenterFixture(t *testing.T) {
	r := hourRange(t, 2)
	slo := model.SLO{Start: r.Start, End: r.End, Kind: model.SLOCumulative, Objective: 20, BasePrice: 2}
	a1 := model.ActivitySpec{
		Easc:         "easc1",
		Name:         "A1",
		Relocability: model.RelocSpreadable,
		DataCenters: []model.DataCenterSpec{
			{DataCenter: "dc1", DefaultMode: "WM0", Modes: []model.WorkingMode{mode("WM0", 0, 100)}},
			{DataCenter: "dc2", DefaultMode: "WM1", Modes: []model.WorkingMode{mode("WM1", 10, 200)}, SLOs: []model.SLO{slo}},
		},
	}
	budgets := []model.PowerBudget{flatBudget("easc1", "dc1", r, 100), flatBudget("easc1", "dc2", r, 200)}
	p := Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("dc1-forecasts", "dc1", r, 100, 0.5), flatForecast("dc2-forecasts", "dc2", r, 200, 0.5)},
		Budgets:    budgets,
		Activities: []model.ActivitySpec{a1},
	}
	plans, stats := solve(t, p, testConfig())
	if stats.Status != model.StatusOK {
		t.Fatalf("expected ok got %s", stats.Status)
	}
	want := map[string][]model.Work{
		"dc1": {{StartSlot: 0, EndSlot: 1, Mode: "WM0", Power: 100}, {StartSlot: 1, EndSlot: 2, Mode: "WM0", Power: 100}},
		"dc2": {{StartSlot: 0, EndSlot: 1, Mode: "WM1", Power: 200, Performance: 10}, {StartSlot: 1, EndSlot: 2, Mode: "WM1", Power: 200, Performance: 10}},
	}
	for dc, w := range want {
		if got := works(t, plans, "A1", dc); !reflect.DeepEqual(got, w) {
			t.Fatalf("%s: expected %+v got %+v", dc, w, got)
		}
	}
	ap, _ := plans[0].Activity("A1")
	if len(ap.ServiceLevels) != 1 || ap.ServiceLevels[0].Achieved != 20 || !ap.ServiceLevels[0].Met {
		t.Fatalf("unexpected service levels %+v", ap.ServiceLevels)
	}
	if err := plans[0].CheckCoverage(); err != nil {
		t.Fatalf("coverage: %v", err)
	}
	checkBudgets(t, plans, budgets)
	if len(stats.Scores) == 0 || !stats.MonotonicTrace() {
		t.Fatalf("bad trace %+v", stats.Scores)
	}
}

func TestSolveForecastMismatch(t *testing.T) {
	r := hourRange(t, 1)
	a, _ := model.NewTimeRange(t0, t0.Add(time.Minute), 10*time.Second)
	b, _ := model.NewTimeRange(t0, t0.Add(time.Minute), 30*time.Second)
	p := Problem{
		Window: r,
		Forecasts: []model.SourceForecast{
			flatForecast("solar", "dc1", a, 10, 1),
			flatForecast("grid", "dc1", b, 10, 0),
		},
		Activities: []model.ActivitySpec{onOff("A", "dc1", 1, 10)},
	}
	engine := EngineFunc(func(context.Context, *Model, func(float64)) (Result, error) {
		t.Fatal("search must not start")
		return Result{}, nil
	})
	_, _, err := New(p, testConfig(), WithEngine(engine)).Solve(context.Background())
	if !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("expected config mismatch got %v", err)
	}
	var cm *ConfigMismatchError
	if !errors.As(err, &cm) || cm.Source != "grid" {
		t.Fatalf("expected offending source grid got %v", err)
	}
	if !errors.Is(err, model.ErrForecastMismatch) {
		t.Fatalf("expected forecast mismatch cause")
	}
}

func TestSolvePrefersRenewableSlots(t *testing.T) {
	r := hourRange(t, 2)
	f := flatForecast("pv", "dc1", r, 100, 1)
	f.Slots[1].Renewable = 0
	p := Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{f},
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100)},
		Activities: []model.ActivitySpec{onOff("A", "dc1", 10, 100, cumulative(r, 10))},
	}
	plans, stats := solve(t, p, testConfig())
	if got := modes(works(t, plans, "A", "dc1")); !reflect.DeepEqual(got, []string{"on", "off"}) {
		t.Fatalf("expected to run on renewable slot, got %v", got)
	}
	if stats.BrownEnergy != 0 {
		t.Fatalf("expected no brown energy got %.1f", stats.BrownEnergy)
	}
}

func TestSolveRespectsBudgetAndQuota(t *testing.T) {
	r := hourRange(t, 4)
	spec := model.ActivitySpec{
		Easc: "easc1", Name: "A", Relocability: model.RelocNone,
		DataCenters: []model.DataCenterSpec{{
			DataCenter: "dc1", DefaultMode: "off",
			Modes: []model.WorkingMode{mode("off", 0, 0), mode("low", 6, 50), mode("high", 12, 150)},
			SLOs:  []model.SLO{cumulative(r, 100)},
		}},
	}
	b := flatBudget("easc1", "dc1", r, 100)
	b.Quotas = []model.EnergyQuota{
		{Start: r.Start, End: r.SlotStart(2), MaxEnergy: 50},
		{Start: r.SlotStart(2), End: r.End, MaxEnergy: 200},
	}
	p := Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("grid", "dc1", r, 500, 0)},
		Budgets:    []model.PowerBudget{b},
		Activities: []model.ActivitySpec{spec},
	}
	plans, _ := solve(t, p, testConfig())
	checkBudgets(t, plans, p.Budgets)
	ws := works(t, plans, "A", "dc1")
	var first, second float64
	for _, w := range ws {
		if w.Mode == "high" {
			t.Fatalf("high mode exceeds the per-slot budget: %+v", w)
		}
		if w.StartSlot < 2 {
			first += w.Power
		} else {
			second += w.Power
		}
	}
	if first > 50 || second > 200 {
		t.Fatalf("quota exceeded: %.0f %.0f", first, second)
	}
	if got := modes(ws); !reflect.DeepEqual(got[2:], []string{"low", "low"}) {
		t.Fatalf("expected low mode where the quota allows it, got %v", got)
	}
}

func TestSolveForbiddenCombination(t *testing.T) {
	r := hourRange(t, 3)
	instant := model.SLO{Start: r.Start, End: r.End, Kind: model.SLOInstant, Objective: 20}
	spec := model.ActivitySpec{
		Easc: "easc1", Name: "A", Relocability: model.RelocSpreadable,
		DataCenters: []model.DataCenterSpec{
			{DataCenter: "dc1", DefaultMode: "idle", Modes: []model.WorkingMode{mode("idle", 0, 0), mode("run", 10, 10)}, SLOs: []model.SLO{instant}},
			{DataCenter: "dc2", DefaultMode: "idle", Modes: []model.WorkingMode{mode("idle", 0, 0), mode("run", 10, 10)}},
		},
		Forbidden: []model.ForbiddenCombination{{{DataCenter: "dc1", Mode: "run"}, {DataCenter: "dc2", Mode: "run"}}},
	}
	p := Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("g1", "dc1", r, 100, 1), flatForecast("g2", "dc2", r, 100, 1)},
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100), flatBudget("easc1", "dc2", r, 100)},
		Activities: []model.ActivitySpec{spec},
	}
	plans, stats := solve(t, p, testConfig())
	if stats.Status != model.StatusOK {
		t.Fatalf("expected ok got %s", stats.Status)
	}
	w1, w2 := works(t, plans, "A", "dc1"), works(t, plans, "A", "dc2")
	for i := range w1 {
		if w1[i].Mode == "run" && w2[i].Mode == "run" {
			t.Fatalf("forbidden combination selected at slot %d", i)
		}
		if w1[i].Mode != "run" && w2[i].Mode != "run" {
			t.Fatalf("expected one data center running at slot %d", i)
		}
	}
}

func TestSolveMigratableSingleActiveDataCenter(t *testing.T) {
	r := hourRange(t, 3)
	spec := model.ActivitySpec{
		Easc: "easc1", Name: "M", Relocability: model.RelocMigratable, MigrationCost: 1,
		DataCenters: []model.DataCenterSpec{
			{DataCenter: "dc1", DefaultMode: "off", Modes: []model.WorkingMode{mode("off", 0, 0), mode("on", 10, 50)},
				SLOs: []model.SLO{{Start: r.Start, End: r.End, Kind: model.SLOInstant, Objective: 20}}},
			{DataCenter: "dc2", DefaultMode: "off", Modes: []model.WorkingMode{mode("off", 0, 0), mode("on", 10, 50)}},
		},
	}
	f2 := flatForecast("g2", "dc2", r, 100, 1)
	f2.Slots[0].Renewable = 0
	p := Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("g1", "dc1", r, 100, 0.2), f2},
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100), flatBudget("easc1", "dc2", r, 100)},
		Activities: []model.ActivitySpec{spec},
	}
	plans, _ := solve(t, p, testConfig())
	w1, w2 := works(t, plans, "M", "dc1"), works(t, plans, "M", "dc2")
	for i := range w1 {
		if w1[i].Mode == "on" && w2[i].Mode == "on" {
			t.Fatalf("migratable activity active twice at slot %d", i)
		}
	}
	if w2[1].Mode != "on" || w2[2].Mode != "on" {
		t.Fatalf("expected migration to the renewable data center, got dc1=%v dc2=%v", modes(w1), modes(w2))
	}
}

func TestSolvePrecedence(t *testing.T) {
	r := hourRange(t, 3)
	a := onOff("A", "dc1", 10, 10, cumulative(r, 10))
	b := onOff("B", "dc1", 10, 10, cumulative(r, 10))
	b.Precedences = []string{"A"}
	f := flatForecast("g", "dc1", r, 100, 0)
	f.Slots[0].Renewable = 1
	p := Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{f},
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100)},
		Activities: []model.ActivitySpec{b, a},
	}
	plans, _ := solve(t, p, testConfig())
	wa, wb := works(t, plans, "A", "dc1"), works(t, plans, "B", "dc1")
	lastA, firstB := -1, -1
	for i := range wa {
		if wa[i].Mode == "on" {
			lastA = i
		}
		if wb[i].Mode == "on" && firstB < 0 {
			firstB = i
		}
	}
	if lastA < 0 || firstB < 0 || firstB <= lastA {
		t.Fatalf("B must start after A completes: A=%v B=%v", modes(wa), modes(wb))
	}
}

func TestSolveReplayPinsModes(t *testing.T) {
	r := hourRange(t, 3)
	p := Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("g", "dc1", r, 100, 1)},
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100)},
		Activities: []model.ActivitySpec{onOff("A", "dc1", 10, 10, cumulative(r, 30))},
		Replay:     []model.ReplaySpec{{Activity: "A", Start: r.Start, Modes: []string{"off", "on"}}},
	}
	plans, _ := solve(t, p, testConfig())
	if got := modes(works(t, plans, "A", "dc1")); !reflect.DeepEqual(got, []string{"off", "on", "on"}) {
		t.Fatalf("expected pinned prefix then search, got %v", got)
	}
}

func TestSolveReplayUnknownMode(t *testing.T) {
	r := hourRange(t, 1)
	p := Problem{
		Window:     r,
		Activities: []model.ActivitySpec{onOff("A", "dc1", 10, 10)},
		Replay:     []model.ReplaySpec{{Activity: "A", DataCenter: "dc1", Start: r.Start, Modes: []string{"turbo"}}},
	}
	if _, _, err := New(p, testConfig()).Solve(context.Background()); !errors.Is(err, ErrInvalidProblem) {
		t.Fatalf("expected invalid problem got %v", err)
	}
}

func TestSolveInfeasible(t *testing.T) {
	r := hourRange(t, 2)
	spec := model.ActivitySpec{
		Easc: "easc1", Name: "A", Relocability: model.RelocNone,
		DataCenters: []model.DataCenterSpec{{DataCenter: "dc1", DefaultMode: "on", Modes: []model.WorkingMode{mode("on", 1, 150)}}},
	}
	p := Problem{
		Window:     r,
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100)},
		Activities: []model.ActivitySpec{spec},
	}
	plans, stats := solve(t, p, testConfig())
	if stats.Status != model.StatusInfeasible {
		t.Fatalf("expected infeasible got %s", stats.Status)
	}
	if len(plans) != 1 || len(plans[0].Activities) != 1 || len(plans[0].Activities[0].DataCenters[0].Works) != 0 {
		t.Fatalf("expected empty plan skeleton got %+v", plans)
	}
	if len(stats.Scores) != 0 {
		t.Fatalf("expected no score got %+v", stats.Scores)
	}
}

func TestSolveRelaxationInfeasible(t *testing.T) {
	orig := relaxFn
	relaxFn = func(*Model) (relaxation, error) { return relaxation{Infeasible: true}, nil }
	defer func() { relaxFn = orig }()
	r := hourRange(t, 1)
	p := Problem{Window: r, Activities: []model.ActivitySpec{onOff("A", "dc1", 1, 0)}}
	_, stats := solve(t, p, testConfig())
	if stats.Status != model.StatusInfeasible {
		t.Fatalf("expected infeasible got %s", stats.Status)
	}
}

func TestSolveRelaxationFailureIgnored(t *testing.T) {
	orig := relaxFn
	relaxFn = func(*Model) (relaxation, error) { return relaxation{}, errors.New("singular") }
	defer func() { relaxFn = orig }()
	r := hourRange(t, 1)
	p := Problem{
		Window:     r,
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100)},
		Activities: []model.ActivitySpec{onOff("A", "dc1", 1, 10)},
	}
	_, stats := solve(t, p, testConfig())
	if stats.Status != model.StatusOK || stats.Bound != nil {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

// ideal plan far from every option so the bound stays weak and the search
// cannot finish within the node limit.
func timeoutProblem(t *testing.T, slots int) Problem {
	t.Helper()
	r := hourRange(t, slots)
	spec := model.ActivitySpec{
		Easc: "easc1", Name: "A", Relocability: model.RelocSpreadable,
		DataCenters: []model.DataCenterSpec{
			{DataCenter: "dc1", DefaultMode: "off", Modes: []model.WorkingMode{mode("off", 0, 0), mode("half", 1, 50), mode("full", 2, 100)}},
		},
	}
	spec2 := spec
	spec2.Name = "B"
	ideal := model.IdealPlan{DataCenter: "dc1", Range: r, Power: make([]float64, r.Slots())}
	for i := range ideal.Power {
		ideal.Power[i] = 33
	}
	return Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("g", "dc1", r, 1000, 1)},
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 200)},
		Activities: []model.ActivitySpec{spec, spec2},
		IdealPlans: []model.IdealPlan{ideal},
	}
}

func TestSolveNodeLimitReturnsIncumbent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxNodes = 30
	cfg.RelaxationLimit = -1
	p := timeoutProblem(t, 10)
	plans, stats := solve(t, p, cfg, WithEngine(NewBranchAndBound(BranchAndBoundConfig{CheckEvery: 1})))
	if stats.Status != model.StatusTimeout {
		t.Fatalf("expected timeout got %s", stats.Status)
	}
	if len(stats.Scores) == 0 || !stats.MonotonicTrace() {
		t.Fatalf("expected incumbent trace got %+v", stats.Scores)
	}
	for _, p := range plans {
		if err := p.CheckCoverage(); err != nil {
			t.Fatalf("coverage: %v", err)
		}
	}
	checkBudgets(t, plans, p.Budgets)
}

func TestSolveDeadlineWithoutSolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutSeconds = 1e-9
	cfg.RelaxationLimit = -1
	p := timeoutProblem(t, 10)
	plans, stats := solve(t, p, cfg, WithEngine(NewBranchAndBound(BranchAndBoundConfig{CheckEvery: 1})))
	if stats.Status != model.StatusTimeout {
		t.Fatalf("expected timeout got %s", stats.Status)
	}
	if len(plans) != 1 || len(plans[0].Activities[0].DataCenters[0].Works) != 0 {
		t.Fatalf("expected skeleton plan got %+v", plans)
	}
}

func TestSolveFirstFeasible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Optimize = false
	_, stats := solve(t, timeoutProblem(t, 10), cfg)
	if stats.Status != model.StatusOK || len(stats.Scores) != 1 {
		t.Fatalf("expected a single incumbent with ok status got %s %d", stats.Status, len(stats.Scores))
	}
}

func TestSolveCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New(timeoutProblem(t, 10), DefaultConfig()).Solve(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled got %v", err)
	}
}

func TestSolveProfitMode(t *testing.T) {
	r := hourRange(t, 2)
	slo := model.SLO{Start: r.Start, End: r.End, Kind: model.SLOInstant, Objective: 10, BasePrice: 1,
		Modifiers: []model.PriceModifier{{Threshold: 5, Modifier: 2}, {Threshold: 10, Modifier: 6}}}
	spec := model.ActivitySpec{
		Easc: "easc1", Name: "P", Relocability: model.RelocNone,
		DataCenters: []model.DataCenterSpec{{
			DataCenter: "dc1", DefaultMode: "off",
			Modes: []model.WorkingMode{mode("off", 0, 0), mode("mid", 5, 40), mode("max", 10, 90)},
			SLOs:  []model.SLO{slo},
		}},
	}
	p := Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("g", "dc1", r, 100, 0)},
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100)},
		Activities: []model.ActivitySpec{spec},
	}
	cfg := testConfig()
	cfg.Objective = ObjectiveProfit
	plans, stats := solve(t, p, cfg)
	if got := modes(works(t, plans, "P", "dc1")); !reflect.DeepEqual(got, []string{"max", "max"}) {
		t.Fatalf("expected max price modes got %v", got)
	}
	best, _ := stats.Best()
	if best > -13.9 {
		t.Fatalf("expected revenue of 14 got %.2f", -best)
	}
	if stats.Bound != nil {
		t.Fatalf("profit mode must not report a brown bound")
	}
}

func TestSolveTransitionCostFromLiveMode(t *testing.T) {
	r := hourRange(t, 2)
	spec := onOff("A", "dc1", 10, 10)
	spec.DataCenters[0].Modes[0].Transitions = map[string]float64{"on": 3}
	p := Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("g", "dc1", r, 100, 1)},
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100)},
		Activities: []model.ActivitySpec{spec},
		Live:       []model.LiveMetric{{Easc: "easc1", Activity: "A", DataCenter: "dc1", Mode: "off"}},
		Replay:     []model.ReplaySpec{{Activity: "A", Start: r.Start, Modes: []string{"on", "on"}}},
	}
	plans, _ := solve(t, p, testConfig())
	ws := works(t, plans, "A", "dc1")
	if ws[0].Performance != 7 || ws[1].Performance != 10 {
		t.Fatalf("expected transition cost on first slot only, got %+v", ws)
	}
}

func TestSolvePastServiceLevels(t *testing.T) {
	r := hourRange(t, 2)
	slo := model.SLO{Start: r.Start.Add(-2 * time.Hour), End: r.End, Kind: model.SLOCumulative, Objective: 20}
	p := Problem{
		Window:      r,
		Forecasts:   []model.SourceForecast{flatForecast("g", "dc1", r, 100, 0)},
		Budgets:     []model.PowerBudget{flatBudget("easc1", "dc1", r, 100)},
		Activities:  []model.ActivitySpec{onOff("A", "dc1", 10, 50, slo)},
		PastService: []model.PastServiceLevel{{Easc: "easc1", Activity: "A", Start: slo.Start, End: r.Start, Performance: 10}},
	}
	plans, _ := solve(t, p, testConfig())
	on := 0
	for _, w := range works(t, plans, "A", "dc1") {
		if w.Mode == "on" {
			on++
		}
	}
	if on != 1 {
		t.Fatalf("expected a single running slot thanks to past performance, got %d", on)
	}
	ap, _ := plans[0].Activity("A")
	if ap.ServiceLevels[0].Achieved != 20 {
		t.Fatalf("expected achieved 20 including past got %.1f", ap.ServiceLevels[0].Achieved)
	}
}

func TestSolveIneligibleActivityKeepsDefault(t *testing.T) {
	r := hourRange(t, 2)
	later := model.SLO{Start: r.End, End: r.End.Add(time.Hour), Kind: model.SLOCumulative, Objective: 10}
	p := Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("g", "dc1", r, 100, 1)},
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100)},
		Activities: []model.ActivitySpec{onOff("A", "dc1", 10, 10, later)},
	}
	plans, _ := solve(t, p, testConfig())
	if got := modes(works(t, plans, "A", "dc1")); !reflect.DeepEqual(got, []string{"off", "off"}) {
		t.Fatalf("expected default mode outside SLO windows got %v", got)
	}
}

func TestFeasibleChecksPrecedence(t *testing.T) {
	r := hourRange(t, 3)
	a := onOff("A", "dc1", 10, 10, cumulative(r, 10))
	b := onOff("B", "dc1", 10, 10, cumulative(r, 10))
	b.Precedences = []string{"A"}
	m, err := Compile(Problem{
		Window:     r,
		Forecasts:  []model.SourceForecast{flatForecast("g", "dc1", r, 100, 0)},
		Budgets:    []model.PowerBudget{flatBudget("easc1", "dc1", r, 100)},
		Activities: []model.ActivitySpec{a, b},
	}, testConfig())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	assign := func(modes map[string][]string) Solution {
		s := m.NewSolution()
		for ui, u := range m.units {
			want := modes[m.acts[u.act].spec.Name]
			for ti := range s[ui] {
				for oi, o := range u.options {
					if o.Mode == want[ti] {
						s[ui][ti] = oi
						break
					}
				}
			}
		}
		return s
	}

	err = m.Feasible(assign(map[string][]string{"A": {"off", "off", "on"}, "B": {"off", "on", "off"}}))
	if err == nil || !strings.Contains(err.Error(), "before A completes") {
		t.Fatalf("expected precedence violation got %v", err)
	}
	if err := m.Feasible(assign(map[string][]string{"A": {"on", "off", "off"}, "B": {"off", "on", "on"}})); err != nil {
		t.Fatalf("ordered solution rejected: %v", err)
	}
}
