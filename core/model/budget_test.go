package model

import (
	"errors"
	"testing"
	"time"
)

func TestPowerBudgetValidate(t *testing.T) {
	r, _ := NewTimeRange(base, base.Add(4*time.Hour), time.Hour)
	b := PowerBudget{Easc: "e", DataCenter: "dc1", Range: r, MaxPower: []float64{10, 10, 20, 20},
		Quotas: []EnergyQuota{{Start: base, End: base.Add(2 * time.Hour), MaxEnergy: 15}, {Start: base.Add(3 * time.Hour), End: r.End, MaxEnergy: 20}}}
	if err := b.Validate(); err == nil {
		t.Fatalf("expected quota gap error")
	}
	b.Quotas[1].Start = base.Add(2 * time.Hour)
	if err := b.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := b.Boundaries(); len(got) != 5 {
		t.Fatalf("unexpected boundaries %v", got)
	}
	s := b.Slice(r.Sub(1, 2))
	if len(s.MaxPower) != 1 || s.MaxPower[0] != 10 || len(s.Quotas) != 1 || s.Quotas[0].MaxEnergy != 15 {
		t.Fatalf("unexpected slice %+v", s)
	}
}

func TestCheckAligned(t *testing.T) {
	r10, _ := NewTimeRange(base, base.Add(time.Minute), 10*time.Second)
	r30, _ := NewTimeRange(base, base.Add(time.Minute), 30*time.Second)
	a := SourceForecast{Source: "a", Range: r10, Slots: make([]SourceSlot, 6)}
	b := SourceForecast{Source: "b", Range: r30, Slots: make([]SourceSlot, 2)}
	err := CheckAligned([]SourceForecast{a, b})
	var me *MismatchError
	if !errors.As(err, &me) || me.Source != "b" || !errors.Is(err, ErrForecastMismatch) {
		t.Fatalf("expected mismatch on b got %v", err)
	}
	if err := CheckAligned([]SourceForecast{a, a}); err != nil {
		t.Fatalf("aligned: %v", err)
	}
}
