package model

import (
	"fmt"
	"time"
)

// Work is one contiguous run of an activity in one data center at one working
// mode. Slot indexes are relative to the start of the owning EascPlan range.
type Work struct {
	StartSlot   int     `json:"start_slot"`
	EndSlot     int     `json:"end_slot"`
	Mode        string  `json:"mode"`
	ModeValue   float64 `json:"mode_value"`
	Level       int     `json:"level"`
	Power       float64 `json:"power_w"`
	Performance float64 `json:"performance"`
}

// Width returns the number of slots covered by the work.
func (w Work) Width() int { return w.EndSlot - w.StartSlot }

// Shift returns a copy of the work moved by offset slots.
func (w Work) Shift(offset int) Work {
	w.StartSlot += offset
	w.EndSlot += offset
	return w
}

// DataCenterWorks holds the works of an activity in one data center.
type DataCenterWorks struct {
	DataCenter string `json:"data_center"`
	Works      []Work `json:"works"`
}

// ServiceLevel is the projected achievement of one SLO window.
type ServiceLevel struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Kind      SLOKind   `json:"kind"`
	Objective float64   `json:"objective"`
	Achieved  float64   `json:"achieved"`
	Price     float64   `json:"price"`
	Met       bool      `json:"met"`
}

// ActivityPlan is the full schedule of one activity.
type ActivityPlan struct {
	Name          string            `json:"name"`
	DataCenters   []DataCenterWorks `json:"data_centers"`
	ServiceLevels []ServiceLevel    `json:"service_levels"`
}

// Works returns the works planned in dc.
func (a ActivityPlan) Works(dc string) []Work {
	for _, d := range a.DataCenters {
		if d.DataCenter == dc {
			return d.Works
		}
	}
	return nil
}

// Compact returns a copy where adjacent works with the same mode, level and
// power are coalesced into a single run.
func (a ActivityPlan) Compact() ActivityPlan {
	out := ActivityPlan{Name: a.Name, ServiceLevels: append([]ServiceLevel(nil), a.ServiceLevels...)}
	for _, d := range a.DataCenters {
		cd := DataCenterWorks{DataCenter: d.DataCenter}
		for _, w := range d.Works {
			n := len(cd.Works)
			if n > 0 {
				last := &cd.Works[n-1]
				if last.EndSlot == w.StartSlot && last.Mode == w.Mode && last.Level == w.Level && last.Power == w.Power {
					last.EndSlot = w.EndSlot
					last.Performance += w.Performance
					continue
				}
			}
			cd.Works = append(cd.Works, w)
		}
		out.DataCenters = append(out.DataCenters, cd)
	}
	return out
}

// EascPlan is the output unit handed to one EASC.
type EascPlan struct {
	Easc       string         `json:"easc"`
	Range      TimeRange      `json:"range"`
	Activities []ActivityPlan `json:"activities"`
}

// Activity returns the plan of the named activity.
func (p EascPlan) Activity(name string) (ActivityPlan, bool) {
	for _, a := range p.Activities {
		if a.Name == name {
			return a, true
		}
	}
	return ActivityPlan{}, false
}

// PowerProfile sums, per data center and slot, the power of every work of the
// plans. Each profile has one entry per slot of the plan range.
func PowerProfile(plans []EascPlan) map[string][]float64 {
	out := make(map[string][]float64)
	for _, p := range plans {
		n := p.Range.Slots()
		for _, a := range p.Activities {
			for _, d := range a.DataCenters {
				prof := out[d.DataCenter]
				if len(prof) < n {
					prof = append(prof, make([]float64, n-len(prof))...)
				}
				for _, w := range d.Works {
					for s := w.StartSlot; s < w.EndSlot && s < n; s++ {
						if s >= 0 {
							prof[s] += w.Power
						}
					}
				}
				out[d.DataCenter] = prof
			}
		}
	}
	return out
}

// CheckCoverage verifies that each (activity, data center) of the plan is
// covered by exactly one work per slot, with non-overlapping contiguous works.
func (p EascPlan) CheckCoverage() error {
	n := p.Range.Slots()
	for _, a := range p.Activities {
		for _, d := range a.DataCenters {
			cursor := 0
			for _, w := range d.Works {
				if w.StartSlot >= w.EndSlot {
					return fmt.Errorf("%s/%s/%s: empty work at slot %d", p.Easc, a.Name, d.DataCenter, w.StartSlot)
				}
				if w.StartSlot != cursor {
					return fmt.Errorf("%s/%s/%s: expected work at slot %d, got %d", p.Easc, a.Name, d.DataCenter, cursor, w.StartSlot)
				}
				cursor = w.EndSlot
			}
			if cursor != n {
				return fmt.Errorf("%s/%s/%s: works end at slot %d, range has %d", p.Easc, a.Name, d.DataCenter, cursor, n)
			}
		}
	}
	return nil
}
