package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/consolidator/core/logger"
	"github.com/kilianp07/consolidator/core/model"
	ilogger "github.com/kilianp07/consolidator/infra/logger"
)

// Scheduler solves one window. Each instance owns its inputs and search state
// so several schedulers can run concurrently.
type Scheduler struct {
	problem     Problem
	cfg         Config
	engine      Engine
	log         logger.Logger
	onIncumbent func(window model.TimeRange, value float64, at time.Time)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithEngine replaces the default branch-and-bound engine.
func WithEngine(e Engine) Option {
	return func(s *Scheduler) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithLogger sets the logger used for solve results.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithIncumbentHook registers a function called for every improving solution.
func WithIncumbentHook(f func(window model.TimeRange, value float64, at time.Time)) Option {
	return func(s *Scheduler) { s.onIncumbent = f }
}

// New returns a Scheduler for p.
func New(p Problem, cfg Config, opts ...Option) *Scheduler {
	cfg.SetDefaults()
	s := &Scheduler{
		problem: p,
		cfg:     cfg,
		engine:  NewBranchAndBound(BranchAndBoundConfig{}),
		log:     ilogger.NopLogger{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Window returns the range solved by s.
func (s *Scheduler) Window() model.TimeRange { return s.problem.Window }

// Problem returns the inputs of s.
func (s *Scheduler) Problem() Problem { return s.problem }

// Config returns the solving parameters of s.
func (s *Scheduler) Config() Config { return s.cfg }

// WithConfig returns a copy of s using cfg.
func (s *Scheduler) WithConfig(cfg Config) *Scheduler {
	cp := *s
	cfg.SetDefaults()
	cp.cfg = cfg
	return &cp
}

// WithReplay returns a copy of s pinning the given replay sequences.
func (s *Scheduler) WithReplay(r []model.ReplaySpec) *Scheduler {
	cp := *s
	cp.problem.Replay = r
	return &cp
}

// Solve searches the window. Infeasible and timed out searches are not errors:
// they are reported by the statistics status, with the best plan found or the
// plan skeleton when none was found. Malformed inputs fail before the search
// starts.
func (s *Scheduler) Solve(ctx context.Context) ([]model.EascPlan, model.Statistics, error) {
	stats := model.Statistics{Window: s.problem.Window, Start: time.Now(), Status: model.StatusOK}
	if err := s.cfg.Validate(); err != nil {
		return nil, stats, fmt.Errorf("%w: %v", ErrInvalidProblem, err)
	}
	m, err := Compile(s.problem, s.cfg)
	if err != nil {
		return nil, stats, err
	}
	res, err := s.engine.Solve(ctx, m, func(cost float64) {
		now := time.Now()
		stats.Record(cost, now)
		s.log.Debugw("incumbent", map[string]any{"window": m.window.String(), "value": cost})
		if s.onIncumbent != nil {
			s.onIncumbent(m.window, cost, now)
		}
	})
	if err != nil {
		return nil, stats, fmt.Errorf("solve %s: %w", m.window, err)
	}
	stats.Status = res.Status
	stats.Nodes = res.Nodes
	stats.Bound = res.Bound
	var plans []model.EascPlan
	if res.Best != nil {
		if err := m.Feasible(res.Best); err != nil {
			return nil, stats, fmt.Errorf("solve %s: engine returned an invalid solution: %w", m.window, err)
		}
		plans, stats.BrownEnergy, stats.Carbon = m.extract(res.Best)
	} else {
		plans = m.skeleton()
	}
	stats.End = time.Now()
	stats.Plan = plans
	s.log.Debugw("window solved", map[string]any{
		"window": m.window.String(),
		"status": stats.Status.String(),
		"nodes":  stats.Nodes,
		"points": len(stats.Scores),
		"brown":  stats.BrownEnergy,
	})
	return plans, stats, nil
}

// eascs returns the EASC names in order of first appearance.
func (m *Model) eascs() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, a := range m.acts {
		add(a.spec.Easc)
	}
	for _, b := range m.problem.Budgets {
		add(b.Easc)
	}
	return out
}

// skeleton returns the plan structure without any work.
func (m *Model) skeleton() []model.EascPlan {
	var out []model.EascPlan
	for _, easc := range m.eascs() {
		p := model.EascPlan{Easc: easc, Range: m.window}
		for _, a := range m.acts {
			if a.spec.Easc != easc {
				continue
			}
			ap := model.ActivityPlan{Name: a.spec.Name}
			for _, ui := range a.units {
				ap.DataCenters = append(ap.DataCenters, model.DataCenterWorks{DataCenter: m.units[ui].spec.DataCenter})
			}
			p.Activities = append(p.Activities, ap)
		}
		out = append(out, p)
	}
	return out
}

// extract turns a complete solution into plans, one Work per slot, and
// returns the brown energy and carbon of the solution.
func (m *Model) extract(sol Solution) ([]model.EascPlan, float64, float64) {
	e := newEvaluator(m)
	var brown, carbon float64
	for t := 0; t < m.slots; t++ {
		r := e.closeSlot(sol, t)
		brown += r.brown
		carbon += r.carbon
	}
	plans := m.skeleton()
	for pi := range plans {
		for ai := range plans[pi].Activities {
			ap := &plans[pi].Activities[ai]
			a := m.findActivity(plans[pi].Easc, ap.Name)
			for di, ui := range m.acts[a].units {
				u := m.units[ui]
				works := make([]model.Work, m.slots)
				for t := 0; t < m.slots; t++ {
					o := u.options[sol[ui][t]]
					works[t] = model.Work{
						StartSlot:   t,
						EndSlot:     t + 1,
						Mode:        o.Mode,
						ModeValue:   o.ModeValue,
						Level:       o.Level,
						Power:       o.Power,
						Performance: e.unitPerf[ui][t],
					}
				}
				ap.DataCenters[di].Works = works
			}
			ap.ServiceLevels = m.serviceLevels(e, a)
		}
	}
	return plans, brown, carbon
}

func (m *Model) serviceLevels(e *evaluator, a int) []model.ServiceLevel {
	var out []model.ServiceLevel
	for _, si := range m.acts[a].instant {
		sp := m.spans[si]
		for t := sp.from; t < sp.to; t++ {
			v := e.actPerf[a][t]
			out = append(out, model.ServiceLevel{
				Start:     m.window.SlotStart(t),
				End:       m.window.SlotStart(t + 1),
				Kind:      model.SLOInstant,
				Objective: sp.slo.Objective,
				Achieved:  v,
				Price:     sp.slo.Price(v),
				Met:       v >= sp.slo.Objective-tolerance,
			})
		}
	}
	for _, si := range m.acts[a].cumul {
		sp := m.spans[si]
		v := e.achieved(si)
		out = append(out, model.ServiceLevel{
			Start:     sp.slo.Start,
			End:       sp.slo.End,
			Kind:      model.SLOCumulative,
			Objective: sp.slo.Objective,
			Achieved:  v,
			Price:     sp.slo.Price(v),
			Met:       v >= sp.slo.Objective-tolerance,
		})
	}
	return out
}
