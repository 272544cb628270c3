package model

import (
	"fmt"
	"time"
)

// MetricType defines what an Objective measures.
type MetricType int

const (
	MetricPower MetricType = iota
	MetricEnergy
	MetricEnergyProperty
)

// String returns a human-readable representation of the metric type.
func (m MetricType) String() string {
	switch m {
	case MetricPower:
		return "POWER"
	case MetricEnergy:
		return "ENERGY"
	case MetricEnergyProperty:
		return "ENERGY_PROPERTY"
	default:
		return "unknown"
	}
}

// ParseMetricType converts a configuration string into a MetricType.
func ParseMetricType(s string) (MetricType, error) {
	switch s {
	case "POWER", "power":
		return MetricPower, nil
	case "ENERGY", "energy":
		return MetricEnergy, nil
	case "ENERGY_PROPERTY", "energy_property", "renewable":
		return MetricEnergyProperty, nil
	}
	return 0, fmt.Errorf("unknown metric type %q", s)
}

// Operator compares an observed value against an objective target.
type Operator int

const (
	OpLessEqual Operator = iota
	OpGreaterEqual
	OpEqual
)

// String returns the symbol of the operator.
func (o Operator) String() string {
	switch o {
	case OpLessEqual:
		return "<="
	case OpGreaterEqual:
		return ">="
	case OpEqual:
		return "=="
	default:
		return "?"
	}
}

// ParseOperator converts "<=", ">=" or "==" into an Operator.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "<=", "le", "LE":
		return OpLessEqual, nil
	case ">=", "ge", "GE":
		return OpGreaterEqual, nil
	case "==", "=", "eq", "EQ":
		return OpEqual, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// Violation returns how far value is from satisfying the operator against
// target. Zero means satisfied.
func (o Operator) Violation(value, target float64) float64 {
	switch o {
	case OpLessEqual:
		if value > target {
			return value - target
		}
	case OpGreaterEqual:
		if value < target {
			return target - value
		}
	case OpEqual:
		if value > target {
			return value - target
		}
		return target - value
	}
	return 0
}

// MinViolation returns the least violation over any value in [lo, hi].
func (o Operator) MinViolation(lo, hi, target float64) float64 {
	switch o {
	case OpLessEqual:
		return o.Violation(lo, target)
	case OpGreaterEqual:
		return o.Violation(hi, target)
	}
	if target < lo {
		return lo - target
	}
	if target > hi {
		return target - hi
	}
	return 0
}

// TimeFrame is the active period of an objective. When Every is set the frame
// repeats: each occurrence starts at Start + k*Every and lasts Duration, until
// Until (exclusive) when non-zero.
type TimeFrame struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Every    time.Duration `json:"every,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Until    time.Time     `json:"until,omitempty"`
}

// Objective is a power, energy or energy-quality goal for a data center.
type Objective struct {
	Name       string     `json:"name"`
	DataCenter string     `json:"data_center"`
	Metric     MetricType `json:"metric"`
	Operator   Operator   `json:"operator"`
	Target     float64    `json:"target"`
	Frame      TimeFrame  `json:"frame"`
	// Priority breaks ties between overlapping objectives of the same metric;
	// the highest value wins.
	Priority int `json:"priority"`
}

// Validate checks the objective frame.
func (o Objective) Validate() error {
	if o.DataCenter == "" {
		return fmt.Errorf("objective %s: data center is required", o.Name)
	}
	f := o.Frame
	if f.Every > 0 {
		if f.Duration <= 0 || f.Duration > f.Every {
			return fmt.Errorf("objective %s: recurring duration must be in (0, every]", o.Name)
		}
		return nil
	}
	if !f.End.After(f.Start) {
		return fmt.Errorf("objective %s: frame end must be after start", o.Name)
	}
	return nil
}

// IsActive reports whether the objective applies at instant t. It only reads
// the objective and can be called concurrently.
func (o Objective) IsActive(t time.Time) bool {
	f := o.Frame
	if t.Before(f.Start) {
		return false
	}
	if f.Every <= 0 {
		return t.Before(f.End)
	}
	if !f.Until.IsZero() && !t.Before(f.Until) {
		return false
	}
	offset := t.Sub(f.Start) % f.Every
	return offset < f.Duration
}

// Occurrence returns the bounds of the recurrence containing t.
func (o Objective) Occurrence(t time.Time) (time.Time, time.Time, bool) {
	if !o.IsActive(t) {
		return time.Time{}, time.Time{}, false
	}
	f := o.Frame
	if f.Every <= 0 {
		return f.Start, f.End, true
	}
	k := t.Sub(f.Start) / f.Every
	start := f.Start.Add(k * f.Every)
	end := start.Add(f.Duration)
	if !f.Until.IsZero() && end.After(f.Until) {
		end = f.Until
	}
	return start, end, true
}

// Boundaries returns the instants inside r at which the objective becomes
// active or inactive.
func (o Objective) Boundaries(r TimeRange) []time.Time {
	var out []time.Time
	n := r.Slots()
	prev := o.IsActive(r.Start)
	for i := 1; i < n; i++ {
		t := r.SlotStart(i)
		cur := o.IsActive(t)
		if cur != prev {
			out = append(out, t)
		}
		prev = cur
	}
	return out
}

// ApplicableObjectives returns, for a data center, metric and instant, the
// active objective with the highest priority.
func ApplicableObjectives(objs []Objective, dc string, metric MetricType, t time.Time) (Objective, bool) {
	var best Objective
	found := false
	for _, o := range objs {
		if o.DataCenter != dc || o.Metric != metric || !o.IsActive(t) {
			continue
		}
		if !found || o.Priority > best.Priority {
			best = o
			found = true
		}
	}
	return best, found
}
