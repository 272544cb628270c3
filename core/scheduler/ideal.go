package scheduler

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// buildIdeal fills m.ideal when the ideal-plan heuristic is enabled. Supplied
// plans are used as is; without any, a target is derived from the activities
// and the renewable forecast. Slots without a target hold NaN.
func (m *Model) buildIdeal() {
	if !m.cfg.IdealHeuristic || len(m.dcs) == 0 {
		return
	}
	if len(m.problem.IdealPlans) == 0 {
		m.ideal = m.internalIdeal()
		return
	}
	m.ideal = m.grid()
	for dc, name := range m.dcs {
		for t := 0; t < m.slots; t++ {
			m.ideal[dc][t] = math.NaN()
			for _, p := range m.problem.IdealPlans {
				if p.DataCenter != name {
					continue
				}
				if v, ok := p.PowerAt(m.window.SlotStart(t)); ok {
					m.ideal[dc][t] = v
					break
				}
			}
		}
	}
}

// internalIdeal sums the median option power of every unit and spreads it over
// the data centers in proportion to their renewable availability, or evenly
// when none is forecast. Targets never exceed the per-slot budget.
func (m *Model) internalIdeal() [][]float64 {
	out := m.grid()
	for t := 0; t < m.slots; t++ {
		var total float64
		for _, u := range m.units {
			powers := make([]float64, 0, len(u.allowed[t]))
			for _, oi := range u.allowed[t] {
				powers = append(powers, u.options[oi].Power)
			}
			if len(powers) == 0 {
				continue
			}
			sort.Float64s(powers)
			total += stat.Quantile(0.5, stat.Empirical, powers, nil)
		}
		renew := make([]float64, len(m.dcs))
		for dc := range m.dcs {
			renew[dc] = m.renew[dc][t]
		}
		sum := floats.Sum(renew)
		for dc := range m.dcs {
			share := 1 / float64(len(m.dcs))
			if sum > 0 {
				share = renew[dc] / sum
			}
			out[dc][t] = math.Min(total*share, m.cap[dc][t])
		}
	}
	return out
}
