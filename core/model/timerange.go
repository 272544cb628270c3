package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when a TimeRange is not a whole number of slots.
var ErrInvalidRange = errors.New("invalid time range")

// TimeRange is a contiguous span divided into fixed-width slots.
type TimeRange struct {
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`
	Slot  time.Duration `json:"slot"`
}

// NewTimeRange builds a validated TimeRange.
func NewTimeRange(start, end time.Time, slot time.Duration) (TimeRange, error) {
	r := TimeRange{Start: start, End: end, Slot: slot}
	if err := r.Validate(); err != nil {
		return TimeRange{}, err
	}
	return r, nil
}

// Validate checks that the span is positive and an exact multiple of the slot.
func (r TimeRange) Validate() error {
	if r.Slot <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidRange)
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("%w: end %s not after start %s", ErrInvalidRange, r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	if r.End.Sub(r.Start)%r.Slot != 0 {
		return fmt.Errorf("%w: span %s is not a multiple of %s", ErrInvalidRange, r.End.Sub(r.Start), r.Slot)
	}
	return nil
}

// Slots returns the number of slots in the range.
func (r TimeRange) Slots() int {
	if r.Slot <= 0 {
		return 0
	}
	return int(r.End.Sub(r.Start) / r.Slot)
}

// SlotStart returns the instant at which slot i begins.
func (r TimeRange) SlotStart(i int) time.Time {
	return r.Start.Add(time.Duration(i) * r.Slot)
}

// SlotIndex returns the index of the slot containing t. Instants before the
// start yield negative indexes.
func (r TimeRange) SlotIndex(t time.Time) int {
	d := t.Sub(r.Start)
	idx := int(d / r.Slot)
	if d < 0 && d%r.Slot != 0 {
		idx--
	}
	return idx
}

// Hours returns the slot duration expressed in hours.
func (r TimeRange) Hours() float64 { return r.Slot.Hours() }

// Sub returns the range covering slots [from, to).
func (r TimeRange) Sub(from, to int) TimeRange {
	return TimeRange{Start: r.SlotStart(from), End: r.SlotStart(to), Slot: r.Slot}
}

// Contains reports whether t lies in [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Overlaps reports whether the two ranges share at least one instant.
func (r TimeRange) Overlaps(start, end time.Time) bool {
	return start.Before(r.End) && end.After(r.Start)
}

// Aligned reports whether t falls on a slot boundary of the range.
func (r TimeRange) Aligned(t time.Time) bool {
	return t.Sub(r.Start)%r.Slot == 0
}

// Clamp restricts [start, end) to the range and returns the slot indexes it
// covers. ok is false when the intersection is empty.
func (r TimeRange) Clamp(start, end time.Time) (from, to int, ok bool) {
	if !r.Overlaps(start, end) {
		return 0, 0, false
	}
	if start.Before(r.Start) {
		start = r.Start
	}
	if end.After(r.End) {
		end = r.End
	}
	from = r.SlotIndex(start)
	to = r.SlotIndex(end)
	if !r.Aligned(end) {
		to++
	}
	return from, to, to > from
}

// Equal reports whether both ranges describe the same slots.
func (r TimeRange) Equal(o TimeRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End) && r.Slot == o.Slot
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)/%s", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339), r.Slot)
}
