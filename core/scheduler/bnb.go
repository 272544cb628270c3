package scheduler

import (
	"context"
	"math"
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

// BranchAndBoundConfig tunes the default engine.
type BranchAndBoundConfig struct {
	// CheckEvery is the number of nodes between two checks of the time
	// limit and of the context.
	CheckEvery int64 `json:"check_every"`
}

// BranchAndBound is a depth-first branch-and-bound search over the slots of
// the window, in chronological order. Hard constraints are checked while
// branching; the bound adds the exact cost of closed slots to an optimistic
// estimate of the remaining ones.
type BranchAndBound struct {
	checkEvery int64
}

// NewBranchAndBound returns the default engine.
func NewBranchAndBound(cfg BranchAndBoundConfig) *BranchAndBound {
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = 512
	}
	return &BranchAndBound{checkEvery: cfg.CheckEvery}
}

type search struct {
	m          *Model
	ctx        context.Context
	deadline   time.Time
	checkEvery int64
	onImprove  func(float64)
	ev         *evaluator
	sol        Solution
	width      int
	total      int

	power   [][]float64
	restMin [][]float64
	restMax [][]float64
	used    []float64
	restQ   []float64
	active  [][]int
	first   []int
	last    []int
	slotLB  []float64

	best     Solution
	bestCost float64
	found    bool
	bound    *float64
	nodes    int64
	stopped  bool
	done     bool
}

type activeUndo struct{ first, last int }

// Solve implements Engine.
func (b *BranchAndBound) Solve(ctx context.Context, m *Model, onImprove func(cost float64)) (Result, error) {
	res := Result{Status: model.StatusOK}
	rel, err := relaxFn(m)
	if err == nil {
		if rel.Infeasible {
			res.Status = model.StatusInfeasible
			return res, nil
		}
		bound := rel.Bound
		res.Bound = &bound
	}
	s := b.newSearch(ctx, m, onImprove)
	s.bound = res.Bound
	if !s.precheck() {
		res.Status = model.StatusInfeasible
		return res, nil
	}
	if s.total == 0 {
		s.emptyLeaf()
	} else {
		s.dfs(0, 0)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	res.Nodes = s.nodes
	if s.found {
		res.Best, res.Cost = s.best, s.bestCost
	}
	switch {
	case s.stopped:
		res.Status = model.StatusTimeout
	case !s.found:
		res.Status = model.StatusInfeasible
	}
	return res, nil
}

func (b *BranchAndBound) newSearch(ctx context.Context, m *Model, onImprove func(float64)) *search {
	s := &search{
		m:          m,
		ctx:        ctx,
		checkEvery: b.checkEvery,
		onImprove:  onImprove,
		ev:         newEvaluator(m),
		sol:        m.NewSolution(),
		width:      len(m.units),
		total:      len(m.units) * m.slots,
		power:      m.grid(),
		restMin:    m.grid(),
		restMax:    m.grid(),
		used:       make([]float64, len(m.quotas)),
		restQ:      make([]float64, len(m.quotas)),
		active:     make([][]int, len(m.acts)),
		first:      make([]int, len(m.acts)),
		last:       make([]int, len(m.acts)),
	}
	if d := m.cfg.Timeout(); d > 0 {
		s.deadline = time.Now().Add(d)
	}
	for a := range m.acts {
		s.active[a] = make([]int, m.slots)
		s.first[a], s.last[a] = -1, -1
	}
	for _, u := range m.units {
		for t := 0; t < m.slots; t++ {
			s.restMin[u.dc][t] += u.minPow[t]
			s.restMax[u.dc][t] += u.maxPow[t]
			for _, qi := range u.quotas[t] {
				s.restQ[qi] += u.minPow[t] * m.hours
			}
		}
	}
	s.slotLB = make([]float64, m.slots+1)
	for t := m.slots - 1; t >= 0; t-- {
		s.slotLB[t] = s.slotLB[t+1] + s.slotFloor(t)
	}
	return s
}

// precheck rejects windows where even the least consuming options exceed a
// budget or a quota.
func (s *search) precheck() bool {
	m := s.m
	for dc := range m.dcs {
		for t := 0; t < m.slots; t++ {
			if s.restMin[dc][t] > m.cap[dc][t]+tolerance {
				return false
			}
		}
	}
	for qi, q := range m.quotas {
		if s.restQ[qi] > q.limit+tolerance {
			return false
		}
	}
	for _, u := range m.units {
		for t := 0; t < m.slots; t++ {
			if len(u.allowed[t]) == 0 {
				return false
			}
		}
	}
	return true
}

func (s *search) halt() bool { return s.stopped || s.done }

func (s *search) checkLimits() {
	if s.m.cfg.MaxNodes > 0 && s.nodes >= s.m.cfg.MaxNodes {
		s.stopped = true
		return
	}
	if !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
		s.stopped = true
		return
	}
	if s.ctx.Err() != nil {
		s.stopped = true
	}
}

func (s *search) dfs(k int, closed float64) {
	if k == s.total {
		s.leaf(closed)
		return
	}
	t, u := k/s.width, k%s.width
	for _, oi := range s.m.units[u].order[t] {
		if !s.fits(u, t, oi) {
			continue
		}
		s.nodes++
		if s.nodes%s.checkEvery == 0 {
			s.checkLimits()
			if s.stopped {
				return
			}
		}
		undo := s.assign(u, t, oi)
		c := closed
		if u == s.width-1 {
			c += s.ev.closeSlot(s.sol, t).cost
		}
		if !s.found || s.lowerBound(k+1, c) < s.bestCost-eps {
			s.dfs(k+1, c)
		}
		s.unassign(u, t, oi, undo)
		if s.halt() {
			return
		}
	}
}

func (s *search) emptyLeaf() {
	var cost float64
	for t := 0; t < s.m.slots; t++ {
		cost += s.ev.closeSlot(s.sol, t).cost
	}
	s.leaf(cost)
}

func (s *search) leaf(cost float64) {
	if s.found && cost >= s.bestCost-eps {
		return
	}
	s.found = true
	s.best = s.sol.Clone()
	s.bestCost = cost
	if s.onImprove != nil {
		s.onImprove(cost)
	}
	if !s.m.cfg.Optimize {
		s.done = true
	}
	if s.bound != nil && cost <= *s.bound+tolerance*math.Max(1, math.Abs(*s.bound)) {
		s.done = true
	}
}

func (s *search) fits(u, t, oi int) bool {
	m := s.m
	unit := &m.units[u]
	o := unit.options[oi]
	if s.power[unit.dc][t]+o.Power+s.restMin[unit.dc][t]-unit.minPow[t] > m.cap[unit.dc][t]+tolerance {
		return false
	}
	for _, qi := range unit.quotas[t] {
		if s.used[qi]+o.Power*m.hours+s.restQ[qi]-unit.minPow[t]*m.hours > m.quotas[qi].limit+tolerance {
			return false
		}
	}
	a := unit.act
	act := &m.acts[a]
	if !o.Default {
		if act.spec.Relocability == model.RelocMigratable && s.active[a][t] > 0 {
			return false
		}
		for _, p := range act.preds {
			if s.last[p] >= t {
				return false
			}
		}
		for _, q := range act.succs {
			if s.first[q] >= 0 && s.first[q] <= t {
				return false
			}
		}
	}
	if len(act.spec.Forbidden) > 0 && m.forbiddenAt(a, s.sol, t, u, oi) {
		return false
	}
	return true
}

func (s *search) assign(u, t, oi int) activeUndo {
	m := s.m
	unit := &m.units[u]
	o := unit.options[oi]
	s.sol[u][t] = oi
	s.power[unit.dc][t] += o.Power
	s.restMin[unit.dc][t] -= unit.minPow[t]
	s.restMax[unit.dc][t] -= unit.maxPow[t]
	for _, qi := range unit.quotas[t] {
		s.used[qi] += o.Power * m.hours
		s.restQ[qi] -= unit.minPow[t] * m.hours
	}
	a := unit.act
	undo := activeUndo{first: s.first[a], last: s.last[a]}
	if !o.Default {
		s.active[a][t]++
		if s.first[a] < 0 {
			s.first[a] = t
		}
		s.last[a] = t
	}
	return undo
}

func (s *search) unassign(u, t, oi int, undo activeUndo) {
	m := s.m
	unit := &m.units[u]
	o := unit.options[oi]
	s.sol[u][t] = -1
	s.power[unit.dc][t] -= o.Power
	s.restMin[unit.dc][t] += unit.minPow[t]
	s.restMax[unit.dc][t] += unit.maxPow[t]
	for _, qi := range unit.quotas[t] {
		s.used[qi] -= o.Power * m.hours
		s.restQ[qi] += unit.minPow[t] * m.hours
	}
	a := unit.act
	if !o.Default {
		s.active[a][t]--
	}
	s.first[a], s.last[a] = undo.first, undo.last
}

// lowerBound returns an optimistic cost of any completion of the current
// partial solution whose next decision is k.
func (s *search) lowerBound(k int, closed float64) float64 {
	if k == s.total {
		return closed
	}
	t := k / s.width
	return closed + s.partialLB(t) + s.slotLB[t+1] + s.cumulLB(t)
}

// partialLB bounds the cost of slot t given the units already assigned in it.
func (s *search) partialLB(t int) float64 {
	m := s.m
	w := m.cfg.Weights
	var lb float64
	for dc := range m.dcs {
		lo := s.power[dc][t] + s.restMin[dc][t]
		hi := math.Min(s.power[dc][t]+s.restMax[dc][t], m.cap[dc][t])
		if hi < lo {
			hi = lo
		}
		if m.cfg.Objective == ObjectiveBrown {
			lb += w.Brown * math.Max(0, lo-m.renew[dc][t]) * m.hours
		}
		if m.ideal != nil && !math.IsNaN(m.ideal[dc][t]) {
			lb += w.Ideal * model.OpEqual.MinViolation(lo, hi, m.ideal[dc][t]) * m.hours
		}
		if o := m.powerObj[dc][t]; o != nil {
			lb += w.Objective * o.Operator.MinViolation(lo, hi, o.Target) * m.hours
		}
	}
	for a := range m.acts {
		si := m.instantAt[a][t]
		if si < 0 {
			continue
		}
		var ub float64
		for _, ui := range m.acts[a].units {
			if oi := s.sol[ui][t]; oi >= 0 {
				ub += m.units[ui].options[oi].Perf
			} else {
				ub += m.units[ui].maxPerf[t]
			}
		}
		lb += m.sloLB(m.spans[si].slo, ub)
	}
	return lb
}

// maxFloorCombos caps the enumeration done by slotFloor.
const maxFloorCombos = 4096

// slotFloor returns the least cost of slot t over every combination of
// allowed options, ignoring hard constraints and the coupling with other
// slots. Large slots fall back to partialLB.
func (s *search) slotFloor(t int) float64 {
	m := s.m
	combos := 1
	for _, u := range m.units {
		combos *= len(u.allowed[t])
		if combos > maxFloorCombos {
			return s.partialLB(t)
		}
	}
	power := make([]float64, len(m.dcs))
	perf := make([]float64, len(m.acts))
	best := math.Inf(1)
	var rec func(ui int)
	rec = func(ui int) {
		if ui < len(m.units) {
			u := m.units[ui]
			for _, oi := range u.allowed[t] {
				o := u.options[oi]
				power[u.dc] += o.Power
				perf[u.act] += o.Perf
				rec(ui + 1)
				power[u.dc] -= o.Power
				perf[u.act] -= o.Perf
			}
			return
		}
		var c float64
		for dc := range m.dcs {
			cost, _ := m.dcCost(dc, t, power[dc])
			c += cost
		}
		for a := range m.acts {
			if si := m.instantAt[a][t]; si >= 0 {
				c += m.sloLB(m.spans[si].slo, perf[a])
			}
		}
		best = math.Min(best, c)
	}
	rec(0)
	return best
}

// cumulLB bounds the cost of the cumulative SLO windows still open at slot t.
func (s *search) cumulLB(t int) float64 {
	m := s.m
	var lb float64
	for _, a := range m.acts {
		for _, si := range a.cumul {
			sp := m.spans[si]
			if sp.to <= t {
				continue
			}
			ub := sp.past
			from := sp.from
			for ; from < t; from++ {
				ub += s.ev.actPerf[sp.act][from]
			}
			ub += a.prefixMax[sp.to] - a.prefixMax[from]
			lb += m.sloLB(sp.slo, ub)
		}
	}
	return lb
}

// sloLB is the least SLO cost reachable with a performance of at most ub.
func (m *Model) sloLB(slo model.SLO, ub float64) float64 {
	if m.cfg.Objective == ObjectiveProfit {
		return -slo.MaxPrice(ub)
	}
	return m.cfg.Weights.SLO * math.Max(0, slo.Objective-ub)
}
