package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

const (
	eps       = 1e-9
	tolerance = 1e-6
)

// option is one (working mode, performance level) pair of a unit.
type option struct {
	Mode      string
	ModeValue float64
	Level     int
	Power     float64
	Perf      float64
	Default   bool
}

// unit is one (activity, data center) pair: one decision per slot.
type unit struct {
	act     int
	dc      int
	spec    model.DataCenterSpec
	options []option
	allowed [][]int
	order   [][]int
	minPow  []float64
	maxPow  []float64
	maxPerf []float64
	initial string
	quotas  [][]int
}

type sloSpan struct {
	act      int
	slo      model.SLO
	from, to int
	past     float64
}

type activity struct {
	spec      model.ActivitySpec
	units     []int
	preds     []int
	succs     []int
	eligible  bool
	instant   []int
	cumul     []int
	maxPerf   []float64
	prefixMax []float64
	initialDC string
}

type quota struct {
	dc       int
	easc     string
	from, to int
	limit    float64
}

type energySpan struct {
	obj   model.Objective
	dc    int
	slots []int
	past  float64
}

type closers struct {
	cumul  []int
	energy []int
}

// Model is a Problem compiled into index-based tables for the search. It is
// read-only once built and may be shared by engines.
type Model struct {
	problem Problem
	cfg     Config
	window  model.TimeRange
	hours   float64
	slots   int
	dcs     []string
	dcIndex map[string]int
	units   []unit
	acts    []activity
	spans   []sloSpan
	// instantAt[a][t] is the span index of the instant SLO covering t or -1.
	instantAt [][]int
	cap       [][]float64
	renew     [][]float64
	supply    [][]float64
	carbon    [][]float64
	ideal     [][]float64
	quotas    []quota
	powerObj  [][]*model.Objective
	propObj   [][]*model.Objective
	energy    []energySpan
	closing   []closers
}

// Compile validates p and builds the search model.
func Compile(p Problem, cfg Config) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := &Model{
		problem: p,
		cfg:     cfg,
		window:  p.Window,
		hours:   p.Window.Hours(),
		slots:   p.Window.Slots(),
		dcIndex: make(map[string]int),
	}
	m.collectDataCenters()
	m.buildSupply()
	m.buildCaps()
	m.buildUnits()
	m.buildSLOs()
	m.buildPrecedences()
	m.buildQuotas()
	m.buildObjectives()
	m.buildIdeal()
	m.buildOrder()
	return m, nil
}

// Slots returns the number of slots of the window.
func (m *Model) Slots() int { return m.slots }

// Units returns the number of (activity, data center) decisions per slot.
func (m *Model) Units() int { return len(m.units) }

// Options returns the number of options of unit u.
func (m *Model) Options(u int) int { return len(m.units[u].options) }

// Allowed returns the option indexes unit u may take at slot t.
func (m *Model) Allowed(u, t int) []int { return m.units[u].allowed[t] }

// Window returns the solved range.
func (m *Model) Window() model.TimeRange { return m.window }

func (m *Model) addDataCenter(dc string) int {
	if i, ok := m.dcIndex[dc]; ok {
		return i
	}
	m.dcIndex[dc] = len(m.dcs)
	m.dcs = append(m.dcs, dc)
	return len(m.dcs) - 1
}

func (m *Model) collectDataCenters() {
	for _, a := range m.problem.Activities {
		for _, d := range a.DataCenters {
			m.addDataCenter(d.DataCenter)
		}
	}
	for _, b := range m.problem.Budgets {
		m.addDataCenter(b.DataCenter)
	}
	for _, f := range m.problem.Forecasts {
		m.addDataCenter(f.DataCenter)
	}
}

func (m *Model) grid() [][]float64 {
	g := make([][]float64, len(m.dcs))
	for i := range g {
		g[i] = make([]float64, m.slots)
	}
	return g
}

func (m *Model) buildSupply() {
	m.renew, m.supply, m.carbon = m.grid(), m.grid(), m.grid()
	weighted := m.grid()
	for _, f := range m.problem.Forecasts {
		dc := m.dcIndex[f.DataCenter]
		for t := 0; t < m.slots; t++ {
			i := f.Range.SlotIndex(m.window.SlotStart(t))
			if i < 0 || i >= len(f.Slots) {
				continue
			}
			s := f.Slots[i]
			m.renew[dc][t] += s.Power * s.Renewable
			m.supply[dc][t] += s.Power
			weighted[dc][t] += s.Power * s.Carbon
		}
	}
	for dc := range m.dcs {
		for t := 0; t < m.slots; t++ {
			if m.supply[dc][t] > 0 {
				m.carbon[dc][t] = weighted[dc][t] / m.supply[dc][t]
			}
		}
	}
}

func (m *Model) buildCaps() {
	m.cap = m.grid()
	for _, b := range m.problem.Budgets {
		dc := m.dcIndex[b.DataCenter]
		for t := 0; t < m.slots; t++ {
			m.cap[dc][t] += b.PowerAt(m.window.SlotStart(t))
		}
	}
}

func (m *Model) liveMode(a model.ActivitySpec, dc string) (string, bool) {
	for _, l := range m.problem.Live {
		if l.Activity == a.Name && l.DataCenter == dc && (l.Easc == "" || l.Easc == a.Easc) {
			return l.Mode, true
		}
	}
	return "", false
}

func (m *Model) buildUnits() {
	for ai, a := range m.problem.Activities {
		act := activity{spec: a, eligible: a.EligibleIn(m.window)}
		for _, d := range a.DataCenters {
			u := unit{act: ai, dc: m.dcIndex[d.DataCenter], spec: d}
			for _, wm := range d.Modes {
				for li, l := range wm.Levels {
					u.options = append(u.options, option{
						Mode:      wm.ID,
						ModeValue: wm.Value,
						Level:     li,
						Power:     l.Power,
						Perf:      l.Performance,
						Default:   wm.ID == d.DefaultMode,
					})
				}
			}
			if mode, ok := m.liveMode(a, d.DataCenter); ok {
				u.initial = mode
				if mode != d.DefaultMode {
					act.initialDC = d.DataCenter
				}
			}
			u.allowed = make([][]int, m.slots)
			for t := 0; t < m.slots; t++ {
				u.allowed[t] = m.allowedOptions(a, u, t, act.eligible)
			}
			act.units = append(act.units, len(m.units))
			m.units = append(m.units, u)
		}
		m.acts = append(m.acts, act)
	}
	for i := range m.units {
		u := &m.units[i]
		u.minPow = make([]float64, m.slots)
		u.maxPow = make([]float64, m.slots)
		u.maxPerf = make([]float64, m.slots)
		for t := 0; t < m.slots; t++ {
			lo, hi, perf := math.Inf(1), 0.0, 0.0
			for _, oi := range u.allowed[t] {
				o := u.options[oi]
				lo = math.Min(lo, o.Power)
				hi = math.Max(hi, o.Power)
				perf = math.Max(perf, o.Perf)
			}
			if math.IsInf(lo, 1) {
				lo = 0
			}
			u.minPow[t], u.maxPow[t], u.maxPerf[t] = lo, hi, perf
		}
	}
	for ai := range m.acts {
		a := &m.acts[ai]
		a.maxPerf = make([]float64, m.slots)
		a.prefixMax = make([]float64, m.slots+1)
		for t := 0; t < m.slots; t++ {
			for _, ui := range a.units {
				a.maxPerf[t] += m.units[ui].maxPerf[t]
			}
			a.prefixMax[t+1] = a.prefixMax[t] + a.maxPerf[t]
		}
	}
}

// allowedOptions applies eligibility and replay pins to the options of u at t.
func (m *Model) allowedOptions(a model.ActivitySpec, u unit, t int, eligible bool) []int {
	pin := ""
	if !eligible {
		pin = u.spec.DefaultMode
	}
	at := m.window.SlotStart(t)
	for _, r := range m.problem.Replay {
		if r.Activity != a.Name || (r.DataCenter != "" && r.DataCenter != u.spec.DataCenter) {
			continue
		}
		if mode, ok := r.ModeAt(at, m.window.Slot); ok {
			if _, known := u.spec.Mode(mode); known {
				pin = mode
			}
		}
	}
	var out []int
	for i, o := range u.options {
		if pin == "" || o.Mode == pin {
			out = append(out, i)
		}
	}
	return out
}

func (m *Model) pastPerformance(a model.ActivitySpec, s model.SLO) float64 {
	var sum float64
	for _, p := range m.problem.PastService {
		if p.Activity != a.Name || (p.Easc != "" && p.Easc != a.Easc) {
			continue
		}
		if p.Start.Before(s.Start) || p.End.After(m.window.Start) {
			continue
		}
		sum += p.Performance
	}
	return sum
}

func (m *Model) buildSLOs() {
	m.instantAt = make([][]int, len(m.acts))
	m.closing = make([]closers, m.slots)
	for ai := range m.acts {
		a := &m.acts[ai]
		m.instantAt[ai] = make([]int, m.slots)
		for t := range m.instantAt[ai] {
			m.instantAt[ai][t] = -1
		}
		for _, s := range a.spec.SLOs() {
			from, to, ok := m.window.Clamp(s.Start, s.End)
			if !ok {
				continue
			}
			span := sloSpan{act: ai, slo: s, from: from, to: to}
			si := len(m.spans)
			if s.Kind == model.SLOCumulative {
				span.past = m.pastPerformance(a.spec, s)
				a.cumul = append(a.cumul, si)
				m.closing[to-1].cumul = append(m.closing[to-1].cumul, si)
			} else {
				a.instant = append(a.instant, si)
				for t := from; t < to; t++ {
					m.instantAt[ai][t] = si
				}
			}
			m.spans = append(m.spans, span)
		}
	}
}

func (m *Model) buildPrecedences() {
	for ai := range m.acts {
		a := &m.acts[ai]
		for _, name := range a.spec.Precedences {
			pi := m.findActivity(a.spec.Easc, name)
			if pi < 0 || pi == ai {
				continue
			}
			a.preds = append(a.preds, pi)
			m.acts[pi].succs = append(m.acts[pi].succs, ai)
		}
	}
}

// findActivity resolves a precedence name, preferring the same EASC.
func (m *Model) findActivity(easc, name string) int {
	found := -1
	for i, a := range m.acts {
		if a.spec.Name != name {
			continue
		}
		if a.spec.Easc == easc {
			return i
		}
		if found < 0 {
			found = i
		}
	}
	return found
}

// pastEnergy returns the measured energy of dc over [from, m.window.Start).
func (m *Model) pastEnergy(dc string, from time.Time) float64 {
	start := from.UnixNano()
	var sum float64
	for _, s := range m.problem.PastPower {
		if s.DataCenter != dc || !s.End.After(s.Start) {
			continue
		}
		lo, hi := s.Start.UnixNano(), s.End.UnixNano()
		if lo < start {
			lo = start
		}
		if w := m.window.Start.UnixNano(); hi > w {
			hi = w
		}
		if hi <= lo {
			continue
		}
		frac := float64(hi-lo) / float64(s.End.UnixNano()-s.Start.UnixNano())
		sum += s.Energy() * frac
	}
	return sum
}

func (m *Model) buildQuotas() {
	for _, b := range m.problem.Budgets {
		dc := m.dcIndex[b.DataCenter]
		for _, q := range b.Quotas {
			from, to, ok := m.window.Clamp(q.Start, q.End)
			if !ok {
				continue
			}
			limit := q.MaxEnergy
			if q.Start.Before(m.window.Start) {
				limit -= m.pastEnergy(b.DataCenter, q.Start)
			}
			m.quotas = append(m.quotas, quota{dc: dc, easc: b.Easc, from: from, to: to, limit: limit})
		}
	}
	for ui := range m.units {
		u := &m.units[ui]
		easc := m.acts[u.act].spec.Easc
		u.quotas = make([][]int, m.slots)
		for qi, q := range m.quotas {
			if q.dc != u.dc || q.easc != easc {
				continue
			}
			for t := q.from; t < q.to; t++ {
				u.quotas[t] = append(u.quotas[t], qi)
			}
		}
	}
}

// applicable returns the index of the highest-priority active objective.
func applicable(objs []model.Objective, dc string, metric model.MetricType, at func(model.Objective) bool) int {
	best := -1
	for i, o := range objs {
		if o.DataCenter != dc || o.Metric != metric || !at(o) {
			continue
		}
		if best < 0 || o.Priority > objs[best].Priority {
			best = i
		}
	}
	return best
}

func (m *Model) buildObjectives() {
	objs := m.problem.Objectives
	m.powerObj = make([][]*model.Objective, len(m.dcs))
	m.propObj = make([][]*model.Objective, len(m.dcs))
	type key struct {
		obj   int
		start int64
	}
	spans := make(map[key]int)
	for dc, name := range m.dcs {
		m.powerObj[dc] = make([]*model.Objective, m.slots)
		m.propObj[dc] = make([]*model.Objective, m.slots)
		for t := 0; t < m.slots; t++ {
			at := m.window.SlotStart(t)
			active := func(o model.Objective) bool { return o.IsActive(at) }
			if i := applicable(objs, name, model.MetricPower, active); i >= 0 {
				m.powerObj[dc][t] = &objs[i]
			}
			if i := applicable(objs, name, model.MetricEnergyProperty, active); i >= 0 {
				m.propObj[dc][t] = &objs[i]
			}
			i := applicable(objs, name, model.MetricEnergy, active)
			if i < 0 {
				continue
			}
			occStart, _, _ := objs[i].Occurrence(at)
			k := key{obj: i, start: occStart.UnixNano()}
			si, ok := spans[k]
			if !ok {
				si = len(m.energy)
				spans[k] = si
				past := m.pastEnergy(name, occStart)
				m.energy = append(m.energy, energySpan{obj: objs[i], dc: dc, past: past})
			}
			m.energy[si].slots = append(m.energy[si].slots, t)
		}
	}
	for si, s := range m.energy {
		last := s.slots[len(s.slots)-1]
		m.closing[last].energy = append(m.closing[last].energy, si)
	}
}

// buildOrder sorts the allowed options of each unit and slot by an
// optimistic marginal cost so good solutions are found first.
func (m *Model) buildOrder() {
	w := m.cfg.Weights
	for ui := range m.units {
		u := &m.units[ui]
		u.order = make([][]int, m.slots)
		shares := float64(m.unitsIn(u.dc))
		for t := 0; t < m.slots; t++ {
			brownFrac := 1.0
			if m.supply[u.dc][t] > 0 {
				brownFrac = 1 - m.renew[u.dc][t]/m.supply[u.dc][t]
			}
			perfWeight := 0.0
			if m.hasSLOAt(u.act, t) {
				perfWeight = w.SLO
			}
			score := func(o option) float64 {
				s := -perfWeight * o.Perf
				if m.cfg.Objective == ObjectiveBrown {
					s += w.Brown * m.hours * o.Power * brownFrac
				}
				if m.ideal != nil && !math.IsNaN(m.ideal[u.dc][t]) && shares > 0 {
					s += w.Ideal * m.hours * math.Abs(o.Power-m.ideal[u.dc][t]/shares)
				}
				return s
			}
			ord := append([]int(nil), u.allowed[t]...)
			sort.SliceStable(ord, func(i, j int) bool {
				return score(u.options[ord[i]]) < score(u.options[ord[j]])
			})
			u.order[t] = ord
		}
	}
}

func (m *Model) unitsIn(dc int) int {
	n := 0
	for _, u := range m.units {
		if u.dc == dc {
			n++
		}
	}
	return n
}

func (m *Model) hasSLOAt(a, t int) bool {
	if m.instantAt[a][t] >= 0 {
		return true
	}
	for _, si := range m.acts[a].cumul {
		if s := m.spans[si]; t >= s.from && t < s.to {
			return true
		}
	}
	return false
}
