package model

import (
	"fmt"
	"sort"
	"time"
)

// EnergyQuota caps the energy, in watt-hours, consumed over [Start, End).
type EnergyQuota struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	MaxEnergy float64   `json:"max_energy_wh"`
}

// PowerBudget is the hard allocation granted to one EASC in one data center.
type PowerBudget struct {
	Easc       string        `json:"easc"`
	DataCenter string        `json:"data_center"`
	Range      TimeRange     `json:"range"`
	MaxPower   []float64     `json:"max_power_w"`
	Quotas     []EnergyQuota `json:"quotas"`
}

// Validate checks per-slot power length and that the quotas tile the budget
// range without gaps or overlaps.
func (b PowerBudget) Validate() error {
	if err := b.Range.Validate(); err != nil {
		return fmt.Errorf("budget %s/%s: %w", b.Easc, b.DataCenter, err)
	}
	if len(b.MaxPower) != b.Range.Slots() {
		return fmt.Errorf("budget %s/%s: %d power values for %d slots", b.Easc, b.DataCenter, len(b.MaxPower), b.Range.Slots())
	}
	for i, p := range b.MaxPower {
		if p < 0 {
			return fmt.Errorf("budget %s/%s: negative power at slot %d", b.Easc, b.DataCenter, i)
		}
	}
	if len(b.Quotas) == 0 {
		return fmt.Errorf("budget %s/%s: no energy quota", b.Easc, b.DataCenter)
	}
	qs := append([]EnergyQuota(nil), b.Quotas...)
	sort.Slice(qs, func(i, j int) bool { return qs[i].Start.Before(qs[j].Start) })
	cursor := b.Range.Start
	for _, q := range qs {
		if !q.Start.Equal(cursor) {
			return fmt.Errorf("budget %s/%s: quota gap or overlap at %s", b.Easc, b.DataCenter, cursor.Format(time.RFC3339))
		}
		if !q.End.After(q.Start) {
			return fmt.Errorf("budget %s/%s: empty quota at %s", b.Easc, b.DataCenter, q.Start.Format(time.RFC3339))
		}
		if !b.Range.Aligned(q.End) {
			return fmt.Errorf("budget %s/%s: quota end %s not on a slot boundary", b.Easc, b.DataCenter, q.End.Format(time.RFC3339))
		}
		cursor = q.End
	}
	if !cursor.Equal(b.Range.End) {
		return fmt.Errorf("budget %s/%s: quotas end at %s, range ends at %s", b.Easc, b.DataCenter,
			cursor.Format(time.RFC3339), b.Range.End.Format(time.RFC3339))
	}
	return nil
}

// PowerAt returns the per-slot power ceiling at t, or zero outside the range.
func (b PowerBudget) PowerAt(t time.Time) float64 {
	if !b.Range.Contains(t) {
		return 0
	}
	return b.MaxPower[b.Range.SlotIndex(t)]
}

// Slice restricts the budget to w. Quotas partially overlapping w are kept
// whole so their energy accounting stays exact; the splitter never cuts
// through a quota.
func (b PowerBudget) Slice(w TimeRange) PowerBudget {
	out := PowerBudget{Easc: b.Easc, DataCenter: b.DataCenter, Range: w, MaxPower: make([]float64, w.Slots())}
	for i := range out.MaxPower {
		out.MaxPower[i] = b.PowerAt(w.SlotStart(i))
	}
	for _, q := range b.Quotas {
		if w.Overlaps(q.Start, q.End) {
			out.Quotas = append(out.Quotas, q)
		}
	}
	return out
}

// Boundaries returns the instants where the budget's validity changes: quota
// bounds and changes of the per-slot ceiling.
func (b PowerBudget) Boundaries() []time.Time {
	var out []time.Time
	for _, q := range b.Quotas {
		out = append(out, q.Start, q.End)
	}
	for i := 1; i < len(b.MaxPower); i++ {
		if b.MaxPower[i] != b.MaxPower[i-1] {
			out = append(out, b.Range.SlotStart(i))
		}
	}
	return out
}
