package model

import (
	"fmt"
	"sort"
	"time"
)

// Relocability tells whether an activity may change data center.
type Relocability int

const (
	RelocNone Relocability = iota
	RelocMigratable
	RelocSpreadable
)

// String returns a human-readable representation of the relocability.
func (r Relocability) String() string {
	switch r {
	case RelocNone:
		return "NONE"
	case RelocMigratable:
		return "MIGRATABLE"
	case RelocSpreadable:
		return "SPREADABLE"
	default:
		return "unknown"
	}
}

// ParseRelocability converts a configuration string into a Relocability.
func ParseRelocability(s string) (Relocability, error) {
	switch s {
	case "", "NONE", "none":
		return RelocNone, nil
	case "MIGRATABLE", "migratable":
		return RelocMigratable, nil
	case "SPREADABLE", "spreadable":
		return RelocSpreadable, nil
	}
	return 0, fmt.Errorf("unknown relocability %q", s)
}

// PerformanceLevel maps a business performance to the power needed for it.
type PerformanceLevel struct {
	Performance float64 `json:"performance"`
	Power       float64 `json:"power_w"`
}

// WorkingMode is a discrete operating point of an activity.
type WorkingMode struct {
	ID     string             `json:"id"`
	Value  float64            `json:"value"`
	Levels []PerformanceLevel `json:"levels"`
	// Transitions holds the performance lost when switching from this mode
	// to the keyed mode.
	Transitions map[string]float64 `json:"transitions,omitempty"`
}

// TransitionCost returns the cost of switching from m to the mode with id to.
func (m WorkingMode) TransitionCost(to string) float64 {
	if to == m.ID {
		return 0
	}
	return m.Transitions[to]
}

// ModeRef designates a working mode in a data center.
type ModeRef struct {
	DataCenter string `json:"data_center"`
	Mode       string `json:"mode"`
}

// ForbiddenCombination lists modes that must never be selected together.
type ForbiddenCombination []ModeRef

// DataCenterSpec describes what an activity can do in one data center.
type DataCenterSpec struct {
	DataCenter  string        `json:"data_center"`
	DefaultMode string        `json:"default_mode"`
	Modes       []WorkingMode `json:"modes"`
	SLOs        []SLO         `json:"slos"`
}

// Mode returns the working mode with the given id.
func (d DataCenterSpec) Mode(id string) (WorkingMode, bool) {
	for _, m := range d.Modes {
		if m.ID == id {
			return m, true
		}
	}
	return WorkingMode{}, false
}

// ActivitySpec describes an activity of an EASC.
type ActivitySpec struct {
	Easc          string                 `json:"easc"`
	Name          string                 `json:"name"`
	Relocability  Relocability           `json:"relocability"`
	MigrationCost float64                `json:"migration_cost"`
	Precedences   []string               `json:"precedences"`
	DataCenters   []DataCenterSpec       `json:"data_centers"`
	Forbidden     []ForbiddenCombination `json:"forbidden"`
}

// DataCenter returns the activity settings for dc.
func (a ActivitySpec) DataCenter(dc string) (DataCenterSpec, bool) {
	for _, d := range a.DataCenters {
		if d.DataCenter == dc {
			return d, true
		}
	}
	return DataCenterSpec{}, false
}

// SLOs returns the SLOs of every data center, sorted by start.
func (a ActivitySpec) SLOs() []SLO {
	var out []SLO
	for _, d := range a.DataCenters {
		out = append(out, d.SLOs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Validate checks the activity against the data model invariants.
//
//gocyclo:ignore
func (a ActivitySpec) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("activity name is required")
	}
	if len(a.DataCenters) == 0 {
		return fmt.Errorf("activity %s: no data center", a.Name)
	}
	if a.Relocability == RelocNone && len(a.DataCenters) != 1 {
		return fmt.Errorf("activity %s: non relocable activity must run in exactly one data center", a.Name)
	}
	kind := SLOKind(-1)
	for _, d := range a.DataCenters {
		if len(d.Modes) == 0 {
			return fmt.Errorf("activity %s: no working mode in %s", a.Name, d.DataCenter)
		}
		if _, ok := d.Mode(d.DefaultMode); !ok {
			return fmt.Errorf("activity %s: default mode %q unknown in %s", a.Name, d.DefaultMode, d.DataCenter)
		}
		for _, m := range d.Modes {
			if len(m.Levels) == 0 {
				return fmt.Errorf("activity %s: mode %s has no performance level", a.Name, m.ID)
			}
			for _, l := range m.Levels {
				if l.Power < 0 {
					return fmt.Errorf("activity %s: mode %s has negative power", a.Name, m.ID)
				}
			}
		}
		for _, s := range d.SLOs {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("activity %s: %w", a.Name, err)
			}
			if kind >= 0 && s.Kind != kind {
				return fmt.Errorf("activity %s: mixes instant and cumulative SLOs", a.Name)
			}
			kind = s.Kind
		}
	}
	slos := a.SLOs()
	for i := 1; i < len(slos); i++ {
		if slos[i].Start.Before(slos[i-1].End) {
			return fmt.Errorf("activity %s: overlapping SLO windows at %s", a.Name, slos[i].Start.Format(time.RFC3339))
		}
		if slos[i].Start.After(slos[i-1].End) {
			return fmt.Errorf("activity %s: gap between SLO windows from %s to %s", a.Name,
				slos[i-1].End.Format(time.RFC3339), slos[i].Start.Format(time.RFC3339))
		}
	}
	for _, fc := range a.Forbidden {
		for _, ref := range fc {
			d, ok := a.DataCenter(ref.DataCenter)
			if !ok {
				return fmt.Errorf("activity %s: forbidden combination references unknown data center %s", a.Name, ref.DataCenter)
			}
			if _, ok := d.Mode(ref.Mode); !ok {
				return fmt.Errorf("activity %s: forbidden combination references unknown mode %s", a.Name, ref.Mode)
			}
		}
	}
	return nil
}

// EligibleIn reports whether the activity has work to plan in w: it has no
// SLO at all, or one of its SLO windows overlaps w.
func (a ActivitySpec) EligibleIn(w TimeRange) bool {
	slos := a.SLOs()
	if len(slos) == 0 {
		return true
	}
	for _, s := range slos {
		if w.Overlaps(s.Start, s.End) {
			return true
		}
	}
	return false
}
