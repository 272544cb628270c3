package scheduler

import (
	"fmt"
	"math"

	"github.com/kilianp07/consolidator/core/model"
)

// Solution holds the chosen option index of every unit at every slot,
// indexed [unit][slot]. Unassigned entries are -1.
type Solution [][]int

// NewSolution returns an unassigned solution sized for m.
func (m *Model) NewSolution() Solution {
	s := make(Solution, len(m.units))
	for u := range s {
		s[u] = make([]int, m.slots)
		for t := range s[u] {
			s[u][t] = -1
		}
	}
	return s
}

// Clone returns a deep copy of s.
func (s Solution) Clone() Solution {
	out := make(Solution, len(s))
	for i := range s {
		out[i] = append([]int(nil), s[i]...)
	}
	return out
}

// slotResult is the cost breakdown of one closed slot.
type slotResult struct {
	cost   float64
	brown  float64
	carbon float64
}

// evaluator computes the cost of slots in chronological order. Its buffers
// hold the power and performance of the slots closed so far.
type evaluator struct {
	m        *Model
	power    [][]float64
	unitPerf [][]float64
	actPerf  [][]float64
	activeDC [][]int
}

func newEvaluator(m *Model) *evaluator {
	e := &evaluator{m: m, power: m.grid()}
	e.unitPerf = make([][]float64, len(m.units))
	for u := range e.unitPerf {
		e.unitPerf[u] = make([]float64, m.slots)
	}
	e.actPerf = make([][]float64, len(m.acts))
	e.activeDC = make([][]int, len(m.acts))
	for a := range e.actPerf {
		e.actPerf[a] = make([]float64, m.slots)
		e.activeDC[a] = make([]int, m.slots)
	}
	return e
}

// previousMode returns the mode unit u ran before slot t.
func (e *evaluator) previousMode(s Solution, u, t int) string {
	if t == 0 {
		return e.m.units[u].initial
	}
	return e.m.units[u].options[s[u][t-1]].Mode
}

func (e *evaluator) previousDC(a, t int) int {
	if t > 0 {
		return e.activeDC[a][t-1]
	}
	if dc := e.m.acts[a].initialDC; dc != "" {
		return e.m.dcIndex[dc]
	}
	return -1
}

// closeSlot computes the cost of slot t, which must be fully assigned along
// with every earlier slot, plus the cost of the SLO and energy windows ending
// at t.
func (e *evaluator) closeSlot(s Solution, t int) slotResult {
	m := e.m
	w := m.cfg.Weights
	var res slotResult
	for dc := range m.dcs {
		e.power[dc][t] = 0
	}
	switches := 0
	for ui, u := range m.units {
		o := u.options[s[ui][t]]
		e.power[u.dc][t] += o.Power
		perf := o.Perf
		if prev := e.previousMode(s, ui, t); prev != "" && prev != o.Mode {
			switches++
			if wm, ok := u.spec.Mode(prev); ok {
				perf -= wm.TransitionCost(o.Mode)
			}
		}
		e.unitPerf[ui][t] = perf
	}
	for ai, a := range m.acts {
		e.activeDC[ai][t] = -1
		for _, ui := range a.units {
			if !m.units[ui].options[s[ui][t]].Default {
				e.activeDC[ai][t] = m.units[ui].dc
				break
			}
		}
		if a.spec.MigrationCost > 0 {
			prev, cur := e.previousDC(ai, t), e.activeDC[ai][t]
			if prev >= 0 && cur >= 0 && prev != cur {
				for _, ui := range a.units {
					if m.units[ui].dc == cur {
						e.unitPerf[ui][t] -= a.spec.MigrationCost
					}
				}
			}
		}
		var total float64
		for _, ui := range a.units {
			if e.unitPerf[ui][t] < 0 {
				e.unitPerf[ui][t] = 0
			}
			total += e.unitPerf[ui][t]
		}
		e.actPerf[ai][t] = total
		if si := m.instantAt[ai][t]; si >= 0 {
			res.cost += m.sloCost(m.spans[si].slo, total)
		}
	}
	res.cost += w.Switch * float64(switches)
	for dc := range m.dcs {
		p := e.power[dc][t]
		cost, brown := m.dcCost(dc, t, p)
		res.cost += cost
		res.brown += brown
		if m.supply[dc][t] > 0 {
			res.carbon += p * m.hours * m.carbon[dc][t]
		}
	}
	for _, si := range m.closing[t].cumul {
		res.cost += m.sloCost(m.spans[si].slo, e.achieved(si))
	}
	for _, ei := range m.closing[t].energy {
		es := m.energy[ei]
		energy := es.past
		for _, st := range es.slots {
			energy += e.power[es.dc][st] * m.hours
		}
		res.cost += w.Objective * es.obj.Operator.Violation(energy, es.obj.Target)
	}
	return res
}

// dcCost returns the cost terms of data center dc drawing p watts at slot t,
// along with its brown energy.
func (m *Model) dcCost(dc, t int, p float64) (float64, float64) {
	w := m.cfg.Weights
	var cost float64
	brown := math.Max(0, p-m.renew[dc][t]) * m.hours
	if m.cfg.Objective == ObjectiveBrown {
		cost += w.Brown * brown
	}
	if m.ideal != nil && !math.IsNaN(m.ideal[dc][t]) {
		cost += w.Ideal * math.Abs(p-m.ideal[dc][t]) * m.hours
	}
	if o := m.powerObj[dc][t]; o != nil {
		cost += w.Objective * o.Operator.Violation(p, o.Target) * m.hours
	}
	if o := m.propObj[dc][t]; o != nil {
		share := 1.0
		if p > 0 {
			share = math.Min(p, m.renew[dc][t]) / p
		}
		cost += w.Objective * o.Operator.Violation(share, o.Target) * p * m.hours
	}
	return cost, brown
}

// achieved returns the performance of a cumulative span including the
// performance achieved before the window.
func (e *evaluator) achieved(si int) float64 {
	sp := e.m.spans[si]
	v := sp.past
	for t := sp.from; t < sp.to; t++ {
		v += e.actPerf[sp.act][t]
	}
	return v
}

// Evaluate returns the cost of a complete solution.
func (m *Model) Evaluate(s Solution) (float64, error) {
	if err := m.Feasible(s); err != nil {
		return 0, err
	}
	e := newEvaluator(m)
	var cost float64
	for t := 0; t < m.slots; t++ {
		cost += e.closeSlot(s, t).cost
	}
	return cost, nil
}

// Feasible checks a complete solution against every hard constraint.
//
//gocyclo:ignore
func (m *Model) Feasible(s Solution) error {
	if len(s) != len(m.units) {
		return fmt.Errorf("solution has %d units, model has %d", len(s), len(m.units))
	}
	for ui, u := range m.units {
		if len(s[ui]) != m.slots {
			return fmt.Errorf("unit %d: %d slots, window has %d", ui, len(s[ui]), m.slots)
		}
		for t, oi := range s[ui] {
			if !contains(u.allowed[t], oi) {
				return fmt.Errorf("unit %d slot %d: option %d not allowed", ui, t, oi)
			}
		}
	}
	power := m.grid()
	used := make([]float64, len(m.quotas))
	for ui, u := range m.units {
		for t := 0; t < m.slots; t++ {
			p := u.options[s[ui][t]].Power
			power[u.dc][t] += p
			for _, qi := range u.quotas[t] {
				used[qi] += p * m.hours
			}
		}
	}
	for dc, name := range m.dcs {
		for t := 0; t < m.slots; t++ {
			if power[dc][t] > m.cap[dc][t]+tolerance {
				return fmt.Errorf("%s slot %d: power %.3f exceeds budget %.3f", name, t, power[dc][t], m.cap[dc][t])
			}
		}
	}
	for qi, q := range m.quotas {
		if used[qi] > q.limit+tolerance {
			return fmt.Errorf("%s/%s quota [%d,%d): energy %.3f exceeds %.3f", q.easc, m.dcs[q.dc], q.from, q.to, used[qi], q.limit)
		}
	}
	for ai, a := range m.acts {
		first := -1
		for t := 0; t < m.slots; t++ {
			active := 0
			for _, ui := range a.units {
				if !m.units[ui].options[s[ui][t]].Default {
					active++
				}
			}
			if active > 0 {
				if first < 0 {
					first = t
				}
			}
			if active > 1 && a.spec.Relocability == model.RelocMigratable {
				return fmt.Errorf("%s slot %d: migratable activity active in %d data centers", a.spec.Name, t, active)
			}
		}
		for t := 0; t < m.slots; t++ {
			if m.forbiddenAt(ai, s, t, -1, -1) {
				return fmt.Errorf("%s slot %d: forbidden working mode combination", a.spec.Name, t)
			}
		}
		for _, pi := range a.preds {
			if first < 0 {
				break
			}
			if pl := m.lastActive(s, pi); pl >= first {
				return fmt.Errorf("%s starts at slot %d before %s completes at slot %d", a.spec.Name, first, m.acts[pi].spec.Name, pl)
			}
		}
	}
	return nil
}

func (m *Model) lastActive(s Solution, a int) int {
	for t := m.slots - 1; t >= 0; t-- {
		for _, ui := range m.acts[a].units {
			if !m.units[ui].options[s[ui][t]].Default {
				return t
			}
		}
	}
	return -1
}

// forbiddenAt reports whether a forbidden combination of activity a is fully
// selected at slot t. When u is not -1 the unit is considered to take option
// oi; other unassigned units never complete a combination.
func (m *Model) forbiddenAt(a int, s Solution, t, u, oi int) bool {
	act := m.acts[a]
	for _, fc := range act.spec.Forbidden {
		if len(fc) == 0 {
			continue
		}
		all := true
		for _, ref := range fc {
			mode, ok := m.modeAt(act, s, t, ref.DataCenter, u, oi)
			if !ok || mode != ref.Mode {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (m *Model) modeAt(act activity, s Solution, t int, dc string, u, oi int) (string, bool) {
	for _, ui := range act.units {
		if m.units[ui].spec.DataCenter != dc {
			continue
		}
		idx := s[ui][t]
		if ui == u {
			idx = oi
		}
		if idx < 0 {
			return "", false
		}
		return m.units[ui].options[idx].Mode, true
	}
	return "", false
}

func (m *Model) sloCost(slo model.SLO, achieved float64) float64 {
	if m.cfg.Objective == ObjectiveProfit {
		return -slo.Price(achieved)
	}
	return m.cfg.Weights.SLO * math.Max(0, slo.Objective-achieved)
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
