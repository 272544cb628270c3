package model

import (
	"strings"
	"testing"
	"time"
)

func TestSLOPrice(t *testing.T) {
	s := SLO{Start: base, End: base.Add(time.Hour), Kind: SLOCumulative, Objective: 20, BasePrice: 10,
		Modifiers: []PriceModifier{{Threshold: 10, Modifier: -4}, {Threshold: 20, Modifier: 3}, {Threshold: 30, Modifier: 1}}}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cases := map[float64]float64{5: 10, 10: 6, 25: 13, 40: 11}
	for achieved, want := range cases {
		if got := s.Price(achieved); got != want {
			t.Fatalf("Price(%.0f) = %.0f, want %.0f", achieved, got, want)
		}
	}
	if s.MaxPrice(15) != 10 || s.MaxPrice(35) != 13 {
		t.Fatalf("unexpected max price %.0f %.0f", s.MaxPrice(15), s.MaxPrice(35))
	}
	s.Modifiers[2].Threshold = 15
	if err := s.Validate(); err == nil {
		t.Fatalf("expected non monotonic thresholds error")
	}
}

func TestActivityValidate(t *testing.T) {
	dc := DataCenterSpec{DataCenter: "dc1", DefaultMode: "off", Modes: []WorkingMode{{ID: "off", Levels: []PerformanceLevel{{}}}}}
	a := ActivitySpec{Name: "A", Relocability: RelocNone, DataCenters: []DataCenterSpec{dc, dc}}
	if err := a.Validate(); err == nil {
		t.Fatalf("expected error for a non relocable activity in two data centers")
	}
	a.DataCenters = []DataCenterSpec{dc}
	if err := a.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	a.DataCenters[0].SLOs = []SLO{
		{Start: base, End: base.Add(2 * time.Hour), Kind: SLOInstant},
		{Start: base.Add(time.Hour), End: base.Add(3 * time.Hour), Kind: SLOInstant},
	}
	if err := a.Validate(); err == nil {
		t.Fatalf("expected overlapping SLO error")
	}
	a.DataCenters[0].SLOs[1] = SLO{Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour), Kind: SLOCumulative}
	if err := a.Validate(); err == nil {
		t.Fatalf("expected mixed SLO kinds error")
	}
	a.DataCenters[0].SLOs[1].Kind = SLOInstant
	r, _ := NewTimeRange(base, base.Add(3*time.Hour), time.Hour)
	if err := a.Validate(); err != nil {
		t.Fatalf("contiguous SLO windows: %v", err)
	}
	if !a.EligibleIn(r.Sub(2, 3)) {
		t.Fatalf("expected eligible inside SLO windows")
	}
	later, _ := NewTimeRange(base.Add(4*time.Hour), base.Add(5*time.Hour), time.Hour)
	if a.EligibleIn(later) {
		t.Fatalf("expected ineligible outside SLO windows")
	}
	a.DataCenters[0].SLOs[1].Start = base.Add(150 * time.Minute)
	if err := a.Validate(); err == nil || !strings.Contains(err.Error(), "gap between SLO windows") {
		t.Fatalf("expected gap error got %v", err)
	}
	a.DataCenters[0].SLOs[1].Start = base.Add(2 * time.Hour)
	a.Forbidden = []ForbiddenCombination{{{DataCenter: "dc9", Mode: "off"}}}
	if err := a.Validate(); err == nil {
		t.Fatalf("expected unknown data center error")
	}
}
