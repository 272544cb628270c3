package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrForecastMismatch signals forecasts that cannot be combined.
var ErrForecastMismatch = errors.New("forecast mismatch")

// SourceSlot is the forecast of one energy source for one slot.
type SourceSlot struct {
	Power     float64 `json:"power_w"`
	Renewable float64 `json:"renewable"`
	Carbon    float64 `json:"carbon"`
}

// SourceForecast is the predicted availability of one energy source feeding a
// data center.
type SourceForecast struct {
	Source     string       `json:"source"`
	DataCenter string       `json:"data_center"`
	Range      TimeRange    `json:"range"`
	Slots      []SourceSlot `json:"slots"`
}

// Validate checks slot count and renewable fractions.
func (f SourceForecast) Validate() error {
	if err := f.Range.Validate(); err != nil {
		return fmt.Errorf("forecast %s: %w", f.Source, err)
	}
	if len(f.Slots) != f.Range.Slots() {
		return fmt.Errorf("forecast %s: %d values for %d slots", f.Source, len(f.Slots), f.Range.Slots())
	}
	for i, s := range f.Slots {
		if s.Renewable < 0 || s.Renewable > 1 {
			return fmt.Errorf("forecast %s: renewable fraction %.3f out of [0,1] at slot %d", f.Source, s.Renewable, i)
		}
	}
	return nil
}

// RenewablePower returns the renewable-backed power of slot i.
func (f SourceForecast) RenewablePower(i int) float64 {
	s := f.Slots[i]
	return s.Power * s.Renewable
}

// Slice restricts the forecast to w, which must lie within its range.
func (f SourceForecast) Slice(w TimeRange) SourceForecast {
	from := f.Range.SlotIndex(w.Start)
	to := f.Range.SlotIndex(w.End)
	out := f
	out.Range = w
	out.Slots = append([]SourceSlot(nil), f.Slots[from:to]...)
	return out
}

// Boundaries returns the instants where consecutive slot values differ.
func (f SourceForecast) Boundaries() []time.Time {
	var out []time.Time
	for i := 1; i < len(f.Slots); i++ {
		if f.Slots[i] != f.Slots[i-1] {
			out = append(out, f.Range.SlotStart(i))
		}
	}
	return out
}

// CheckAligned verifies that every forecast shares slot duration, slot count
// and time origin with the first one. The returned error names the first
// offending source.
func CheckAligned(fcs []SourceForecast) error {
	if len(fcs) == 0 {
		return nil
	}
	ref := fcs[0]
	for _, f := range fcs[1:] {
		switch {
		case f.Range.Slot != ref.Range.Slot:
			return &MismatchError{Source: f.Source, Reason: fmt.Sprintf("slot duration %s differs from %s of %s", f.Range.Slot, ref.Range.Slot, ref.Source)}
		case !f.Range.Start.Equal(ref.Range.Start):
			return &MismatchError{Source: f.Source, Reason: fmt.Sprintf("origin %s differs from %s of %s", f.Range.Start.Format(time.RFC3339), ref.Range.Start.Format(time.RFC3339), ref.Source)}
		case len(f.Slots) != len(ref.Slots):
			return &MismatchError{Source: f.Source, Reason: fmt.Sprintf("%d slots differ from %d of %s", len(f.Slots), len(ref.Slots), ref.Source)}
		}
	}
	return nil
}

// MismatchError identifies the forecast source that disagrees with the others.
type MismatchError struct {
	Source string
	Reason string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("forecast %s: %s", e.Source, e.Reason)
}

func (e *MismatchError) Unwrap() error { return ErrForecastMismatch }
