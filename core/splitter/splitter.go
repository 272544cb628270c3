package splitter

import (
	"time"

	"github.com/kilianp07/consolidator/core/logger"
	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/scheduler"
	ilogger "github.com/kilianp07/consolidator/infra/logger"
)

// Splitter turns a planning problem into per-window schedulers.
type Splitter struct {
	reducer Reducer
	log     logger.Logger
}

// New returns a Splitter using reducer. A nil reducer keeps every candidate.
func New(reducer Reducer, log logger.Logger) *Splitter {
	if reducer == nil {
		reducer = Pass{}
	}
	if log == nil {
		log = ilogger.NopLogger{}
	}
	return &Splitter{reducer: reducer, log: log}
}

// Split validates p, cuts its window and returns one scheduler per window,
// ordered chronologically. Every scheduler is built with cfg and opts.
func (s *Splitter) Split(p scheduler.Problem, cfg scheduler.Config, opts ...scheduler.Option) ([]*scheduler.Scheduler, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	points := Points(p, s.reducer)
	windows := Windows(p.Window, points)
	out := make([]*scheduler.Scheduler, 0, len(windows))
	for i, w := range windows {
		out = append(out, scheduler.New(Slice(p, w, i == 0), cfg, opts...))
	}
	s.log.Debugw("split", map[string]any{
		"range":   p.Window.String(),
		"windows": len(windows),
		"points":  formatPoints(points),
	})
	return out, nil
}

// Slice returns the inputs of p relevant to w. Live metrics only describe the
// state at the start of the range, so they are kept for the first window only.
func Slice(p scheduler.Problem, w model.TimeRange, first bool) scheduler.Problem {
	out := scheduler.Problem{
		Window:      w,
		Objectives:  append([]model.Objective(nil), p.Objectives...),
		Activities:  append([]model.ActivitySpec(nil), p.Activities...),
		PastPower:   append([]model.PowerSample(nil), p.PastPower...),
		PastService: append([]model.PastServiceLevel(nil), p.PastService...),
		Replay:      append([]model.ReplaySpec(nil), p.Replay...),
	}
	for _, f := range p.Forecasts {
		out.Forecasts = append(out.Forecasts, f.Slice(w))
	}
	// Budgets are kept even when they do not overlap w so every window
	// reports the same EASCs.
	for _, b := range p.Budgets {
		out.Budgets = append(out.Budgets, b.Slice(w))
	}
	for _, ip := range p.IdealPlans {
		if sl, ok := ip.Slice(w); ok {
			out.IdealPlans = append(out.IdealPlans, sl)
		}
	}
	if first {
		out.Live = append([]model.LiveMetric(nil), p.Live...)
	}
	return out
}

func formatPoints(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Format(time.RFC3339)
	}
	return out
}
