package scheduler

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// errRelaxationSkipped means the relaxation was not attempted.
var errRelaxationSkipped = errors.New("relaxation skipped")

// relaxation is the outcome of the LP relaxation of a model.
type relaxation struct {
	Bound      float64
	Infeasible bool
}

// relaxFn points to the function used to solve the relaxation. It can be
// overridden in tests to simulate solver failures.
var relaxFn = solveRelaxation

// solveRelaxation relaxes the integral choice of one option per unit and slot
// into weights summing to one and solves the resulting linear program with the
// simplex method. Brown energy is modelled with one slack per data center and
// slot. The optimum is a lower bound of the brown-mode cost because every
// other term is non-negative; in profit mode only feasibility is checked.
//
//gocyclo:ignore
func solveRelaxation(m *Model) (relaxation, error) {
	limit := m.cfg.RelaxationLimit
	if limit < 0 || len(m.units) == 0 {
		return relaxation{}, errRelaxationSkipped
	}
	brown := m.cfg.Objective == ObjectiveBrown
	type ref struct{ u, t, o int }
	var vars []ref
	for ui, u := range m.units {
		for t := 0; t < m.slots; t++ {
			for _, oi := range u.allowed[t] {
				vars = append(vars, ref{ui, t, oi})
			}
		}
	}
	nx := len(vars)
	ns := 0
	if brown {
		ns = len(m.dcs) * m.slots
	}
	n := nx + ns
	if n > limit {
		return relaxation{}, errRelaxationSkipped
	}
	slack := func(dc, t int) int { return nx + dc*m.slots + t }

	c := make([]float64, n)
	for dc := range m.dcs {
		for t := 0; t < m.slots && brown; t++ {
			c[slack(dc, t)] = m.cfg.Weights.Brown * m.hours
		}
	}

	rows := len(m.dcs)*m.slots + len(m.quotas) + n
	if brown {
		rows += len(m.dcs) * m.slots
	}
	g := mat.NewDense(rows, n, nil)
	h := make([]float64, rows)
	r := 0
	budgetRow := func(dc, t int) int { return dc*m.slots + t }
	for dc := range m.dcs {
		for t := 0; t < m.slots; t++ {
			h[budgetRow(dc, t)] = m.cap[dc][t]
		}
	}
	r += len(m.dcs) * m.slots
	quotaRow := r
	for qi, q := range m.quotas {
		h[quotaRow+qi] = q.limit
	}
	r += len(m.quotas)
	brownRow := r
	if brown {
		for dc := range m.dcs {
			for t := 0; t < m.slots; t++ {
				row := brownRow + budgetRow(dc, t)
				h[row] = m.renew[dc][t]
				g.Set(row, slack(dc, t), -1)
			}
		}
		r += len(m.dcs) * m.slots
	}
	for j, v := range vars {
		u := m.units[v.u]
		p := u.options[v.o].Power
		g.Set(budgetRow(u.dc, v.t), j, p)
		for _, qi := range u.quotas[v.t] {
			g.Set(quotaRow+qi, j, p*m.hours)
		}
		if brown {
			g.Set(brownRow+budgetRow(u.dc, v.t), j, p)
		}
	}
	for j := 0; j < n; j++ {
		g.Set(r+j, j, -1)
	}

	a := mat.NewDense(len(m.units)*m.slots, n, nil)
	b := make([]float64, len(m.units)*m.slots)
	for j, v := range vars {
		a.Set(v.u*m.slots+v.t, j, 1)
	}
	for i := range b {
		b[i] = 1
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	opt, _, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if errors.Is(err, lp.ErrInfeasible) {
		return relaxation{Infeasible: true}, nil
	}
	if err != nil {
		return relaxation{}, err
	}
	if !brown {
		return relaxation{}, errRelaxationSkipped
	}
	return relaxation{Bound: opt}, nil
}
