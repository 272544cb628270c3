package model

import "time"

// IdealPlan is the power target per slot the power planner computed for a data
// center. It is only an optimisation hint.
type IdealPlan struct {
	DataCenter string    `json:"data_center"`
	Range      TimeRange `json:"range"`
	Power      []float64 `json:"power_w"`
}

// PowerAt returns the target at t and whether the plan covers t.
func (p IdealPlan) PowerAt(t time.Time) (float64, bool) {
	if !p.Range.Contains(t) {
		return 0, false
	}
	i := p.Range.SlotIndex(t)
	if i >= len(p.Power) {
		return 0, false
	}
	return p.Power[i], true
}

// Slice restricts the plan to the slots it shares with w. ok is false when
// the plan does not overlap w.
func (p IdealPlan) Slice(w TimeRange) (IdealPlan, bool) {
	from, to, ok := p.Range.Clamp(w.Start, w.End)
	if !ok || from >= len(p.Power) {
		return IdealPlan{}, false
	}
	if to > len(p.Power) {
		to = len(p.Power)
	}
	return IdealPlan{
		DataCenter: p.DataCenter,
		Range:      p.Range.Sub(from, to),
		Power:      append([]float64(nil), p.Power[from:to]...),
	}, true
}

// PowerSample is a measured average power of a data center over [Start, End).
type PowerSample struct {
	DataCenter string    `json:"data_center"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Power      float64   `json:"power_w"`
}

// Energy returns the energy of the sample in watt-hours.
func (s PowerSample) Energy() float64 { return s.Power * s.End.Sub(s.Start).Hours() }

// PastServiceLevel is the performance an activity already achieved over
// [Start, End), before the planned range.
type PastServiceLevel struct {
	Easc        string    `json:"easc"`
	Activity    string    `json:"activity"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Performance float64   `json:"performance"`
}

// LiveMetric is the current state of an activity in a data center.
type LiveMetric struct {
	Easc        string    `json:"easc"`
	Activity    string    `json:"activity"`
	DataCenter  string    `json:"data_center"`
	Mode        string    `json:"mode"`
	Power       float64   `json:"power_w"`
	Performance float64   `json:"performance"`
	At          time.Time `json:"at"`
}

// ReplaySpec pins the working modes of an activity, one mode id per slot
// starting at Start. An empty DataCenter applies the sequence to every data
// center offering the mode.
type ReplaySpec struct {
	Activity   string    `json:"activity"`
	DataCenter string    `json:"data_center,omitempty"`
	Start      time.Time `json:"start"`
	Modes      []string  `json:"modes"`
}

// ModeAt returns the pinned mode at t, if any.
func (r ReplaySpec) ModeAt(t time.Time, slot time.Duration) (string, bool) {
	if t.Before(r.Start) || slot <= 0 {
		return "", false
	}
	d := t.Sub(r.Start)
	if d%slot != 0 {
		return "", false
	}
	i := int(d / slot)
	if i >= len(r.Modes) {
		return "", false
	}
	return r.Modes[i], true
}
