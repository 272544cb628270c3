package scheduler

import (
	"errors"
	"fmt"

	"github.com/kilianp07/consolidator/core/model"
)

// Problem holds the read-only inputs of one window.
type Problem struct {
	Window     model.TimeRange
	Objectives []model.Objective
	Forecasts  []model.SourceForecast
	// IdealPlans is nil for provisional runs.
	IdealPlans  []model.IdealPlan
	Budgets     []model.PowerBudget
	Activities  []model.ActivitySpec
	PastPower   []model.PowerSample
	PastService []model.PastServiceLevel
	Live        []model.LiveMetric
	Replay      []model.ReplaySpec
}

// FillRanges gives the window range to forecasts, budgets and ideal plans
// sent without one.
func (p *Problem) FillRanges() {
	for i := range p.Forecasts {
		if p.Forecasts[i].Range == (model.TimeRange{}) {
			p.Forecasts[i].Range = p.Window
		}
	}
	for i := range p.Budgets {
		if p.Budgets[i].Range == (model.TimeRange{}) {
			p.Budgets[i].Range = p.Window
		}
	}
	for i := range p.IdealPlans {
		if p.IdealPlans[i].Range == (model.TimeRange{}) {
			p.IdealPlans[i].Range = p.Window
		}
	}
}

// Validate rejects inputs that cannot be solved. Forecast disagreements are
// reported as *ConfigMismatchError.
func (p Problem) Validate() error {
	if err := p.Window.Validate(); err != nil {
		return fmt.Errorf("%w: window: %v", ErrInvalidProblem, err)
	}
	if err := model.CheckAligned(p.Forecasts); err != nil {
		var me *model.MismatchError
		if errors.As(err, &me) {
			return &ConfigMismatchError{Source: me.Source, Err: err}
		}
		return &ConfigMismatchError{Source: "forecasts", Err: err}
	}
	for _, f := range p.Forecasts {
		if err := f.Validate(); err != nil {
			return &ConfigMismatchError{Source: f.Source, Err: err}
		}
		if f.Range.Slot != p.Window.Slot {
			return &ConfigMismatchError{Source: f.Source, Err: fmt.Errorf("slot %s differs from window slot %s", f.Range.Slot, p.Window.Slot)}
		}
		if f.Range.Start.After(p.Window.Start) || f.Range.End.Before(p.Window.End) {
			return &ConfigMismatchError{Source: f.Source, Err: fmt.Errorf("range %s does not cover window %s", f.Range, p.Window)}
		}
		if !f.Range.Aligned(p.Window.Start) {
			return &ConfigMismatchError{Source: f.Source, Err: fmt.Errorf("origin not aligned with window %s", p.Window)}
		}
	}
	for _, b := range p.Budgets {
		if b.Range.Slot != p.Window.Slot {
			return &ConfigMismatchError{Source: "budget " + b.Easc + "/" + b.DataCenter, Err: fmt.Errorf("slot %s differs from window slot %s", b.Range.Slot, p.Window.Slot)}
		}
		if len(b.MaxPower) != b.Range.Slots() {
			return invalidf("budget %s/%s: %d power values for %d slots", b.Easc, b.DataCenter, len(b.MaxPower), b.Range.Slots())
		}
	}
	for _, ip := range p.IdealPlans {
		if ip.Range.Slot != p.Window.Slot {
			return &ConfigMismatchError{Source: "ideal plan " + ip.DataCenter, Err: fmt.Errorf("slot %s differs from window slot %s", ip.Range.Slot, p.Window.Slot)}
		}
	}
	seen := make(map[string]bool, len(p.Activities))
	for _, a := range p.Activities {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProblem, err)
		}
		key := a.Easc + "/" + a.Name
		if seen[key] {
			return invalidf("activity %s declared twice", key)
		}
		seen[key] = true
	}
	for _, r := range p.Replay {
		if err := p.validateReplay(r); err != nil {
			return err
		}
	}
	return nil
}

func (p Problem) validateReplay(r model.ReplaySpec) error {
	var act *model.ActivitySpec
	for i := range p.Activities {
		if p.Activities[i].Name == r.Activity {
			act = &p.Activities[i]
			break
		}
	}
	if act == nil {
		// Replays of activities not planned in this window are ignored.
		return nil
	}
	if r.DataCenter == "" {
		return nil
	}
	dc, ok := act.DataCenter(r.DataCenter)
	if !ok {
		return invalidf("replay %s: unknown data center %s", r.Activity, r.DataCenter)
	}
	for _, m := range r.Modes {
		if _, ok := dc.Mode(m); !ok {
			return invalidf("replay %s: unknown mode %s in %s", r.Activity, m, r.DataCenter)
		}
	}
	return nil
}
