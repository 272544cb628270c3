package file

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/consolidator/connectors"
	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/scenario"
	"github.com/kilianp07/consolidator/core/scheduler"
)

// Source reads the inputs of every iteration from a scenario file. The file
// is read again on each Fetch so it can be edited while the loop runs.
type Source struct {
	path  string
	shift bool
}

// New returns a Source reading path.
func New(path string, opts ...connectors.Option) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("file source: path is required")
	}
	s := &Source{path: path}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WithShift moves the scenario in time so that it starts at the requested
// range, which lets a fixed scenario drive a live loop.
func WithShift() connectors.Option {
	return func(src connectors.Source) error {
		if s, ok := src.(*Source); ok {
			s.shift = true
			return nil
		}
		return fmt.Errorf(connectors.ErrIncompatibleOption, "WithShift", "file")
	}
}

// Fetch loads the scenario. Without shifting, the requested range is ignored
// and the scenario range is planned.
func (s *Source) Fetch(_ context.Context, r model.TimeRange) (scheduler.Problem, error) {
	sc, err := scenario.Load(s.path)
	if err != nil {
		return scheduler.Problem{}, err
	}
	p := sc.Problem()
	if s.shift {
		p = Shift(p, r.Start.Sub(p.Window.Start))
	}
	return p, nil
}

// Shift returns a copy of p moved by d.
func Shift(p scheduler.Problem, d time.Duration) scheduler.Problem {
	if d == 0 {
		return p
	}
	mv := func(r model.TimeRange) model.TimeRange {
		r.Start, r.End = r.Start.Add(d), r.End.Add(d)
		return r
	}
	out := p
	out.Window = mv(p.Window)
	out.Forecasts = make([]model.SourceForecast, len(p.Forecasts))
	for i, f := range p.Forecasts {
		f.Range = mv(f.Range)
		out.Forecasts[i] = f
	}
	out.Budgets = make([]model.PowerBudget, len(p.Budgets))
	for i, b := range p.Budgets {
		b.Range = mv(b.Range)
		out.Budgets[i] = b
	}
	out.IdealPlans = nil
	for _, ip := range p.IdealPlans {
		ip.Range = mv(ip.Range)
		out.IdealPlans = append(out.IdealPlans, ip)
	}
	out.Objectives = make([]model.Objective, len(p.Objectives))
	for i, o := range p.Objectives {
		o.Frame.Start, o.Frame.End = o.Frame.Start.Add(d), o.Frame.End.Add(d)
		if !o.Frame.Until.IsZero() {
			o.Frame.Until = o.Frame.Until.Add(d)
		}
		out.Objectives[i] = o
	}
	out.Activities = make([]model.ActivitySpec, len(p.Activities))
	for i, a := range p.Activities {
		dcs := make([]model.DataCenterSpec, len(a.DataCenters))
		for j, dc := range a.DataCenters {
			slos := make([]model.SLO, len(dc.SLOs))
			for k, slo := range dc.SLOs {
				slo.Start, slo.End = slo.Start.Add(d), slo.End.Add(d)
				slos[k] = slo
			}
			dc.SLOs = slos
			dcs[j] = dc
		}
		a.DataCenters = dcs
		out.Activities[i] = a
	}
	out.PastPower = nil
	for _, s := range p.PastPower {
		s.Start, s.End = s.Start.Add(d), s.End.Add(d)
		out.PastPower = append(out.PastPower, s)
	}
	out.PastService = nil
	for _, s := range p.PastService {
		s.Start, s.End = s.Start.Add(d), s.End.Add(d)
		out.PastService = append(out.PastService, s)
	}
	out.Live = nil
	for _, l := range p.Live {
		l.At = l.At.Add(d)
		out.Live = append(out.Live, l)
	}
	out.Replay = nil
	for _, rp := range p.Replay {
		rp.Start = rp.Start.Add(d)
		out.Replay = append(out.Replay, rp)
	}
	return out
}
