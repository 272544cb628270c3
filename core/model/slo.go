package model

import (
	"fmt"
	"sort"
	"time"
)

// SLOKind tells whether an SLO is evaluated per slot or over its window.
type SLOKind int

const (
	SLOInstant SLOKind = iota
	SLOCumulative
)

// String returns a human-readable representation of the kind.
func (k SLOKind) String() string {
	switch k {
	case SLOInstant:
		return "instant"
	case SLOCumulative:
		return "cumulative"
	default:
		return "unknown"
	}
}

// PriceModifier adjusts the base price once Threshold is reached.
type PriceModifier struct {
	Threshold float64 `json:"threshold"`
	Modifier  float64 `json:"modifier"`
}

// SLO is a business performance target over a window.
type SLO struct {
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Kind      SLOKind         `json:"kind"`
	Objective float64         `json:"objective"`
	BasePrice float64         `json:"base_price"`
	Modifiers []PriceModifier `json:"modifiers"`
}

// Validate checks the window and the monotonicity of thresholds.
func (s SLO) Validate() error {
	if !s.End.After(s.Start) {
		return fmt.Errorf("slo window end must be after start")
	}
	if len(s.Modifiers) < 2 {
		return nil
	}
	inc := s.Modifiers[1].Threshold > s.Modifiers[0].Threshold
	for i := 1; i < len(s.Modifiers); i++ {
		prev, cur := s.Modifiers[i-1].Threshold, s.Modifiers[i].Threshold
		if (inc && cur <= prev) || (!inc && cur >= prev) {
			return fmt.Errorf("slo thresholds must be strictly monotonic")
		}
	}
	return nil
}

// Contains reports whether t lies in the SLO window.
func (s SLO) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Modifier returns the modifier of the greatest threshold not above the
// achieved performance, or zero when none is reached.
func (s SLO) Modifier(achieved float64) float64 {
	best, found := 0.0, false
	var bestTh float64
	for _, m := range s.Modifiers {
		if m.Threshold <= achieved && (!found || m.Threshold > bestTh) {
			best, bestTh, found = m.Modifier, m.Threshold, true
		}
	}
	return best
}

// Price returns the price earned for the achieved performance.
func (s SLO) Price(achieved float64) float64 {
	return s.BasePrice + s.Modifier(achieved)
}

// MaxPrice returns the best price reachable with a performance of at most
// reachable.
func (s SLO) MaxPrice(reachable float64) float64 {
	best := 0.0
	for _, m := range s.Modifiers {
		if m.Threshold <= reachable && m.Modifier > best {
			best = m.Modifier
		}
	}
	return s.BasePrice + best
}

// Thresholds returns the thresholds sorted ascending.
func (s SLO) Thresholds() []float64 {
	out := make([]float64, len(s.Modifiers))
	for i, m := range s.Modifiers {
		out[i] = m.Threshold
	}
	sort.Float64s(out)
	return out
}
