package model

import (
	"errors"
	"testing"
	"time"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestNewTimeRange(t *testing.T) {
	if _, err := NewTimeRange(base, base.Add(90*time.Minute), time.Hour); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected invalid range for a partial slot, got %v", err)
	}
	if _, err := NewTimeRange(base, base, time.Hour); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected invalid range for an empty span, got %v", err)
	}
	r, err := NewTimeRange(base, base.Add(4*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if r.Slots() != 4 || r.Hours() != 1 {
		t.Fatalf("unexpected range %s", r)
	}
	sub := r.Sub(1, 3)
	if !sub.Start.Equal(base.Add(time.Hour)) || sub.Slots() != 2 {
		t.Fatalf("unexpected sub range %s", sub)
	}
}

func TestTimeRangeIndexes(t *testing.T) {
	r, _ := NewTimeRange(base, base.Add(4*time.Hour), time.Hour)
	if r.SlotIndex(base.Add(90*time.Minute)) != 1 {
		t.Fatalf("expected slot 1")
	}
	if r.SlotIndex(base.Add(-30*time.Minute)) != -1 {
		t.Fatalf("expected slot -1 before the range")
	}
	from, to, ok := r.Clamp(base.Add(-time.Hour), base.Add(150*time.Minute))
	if !ok || from != 0 || to != 3 {
		t.Fatalf("unexpected clamp %d %d %v", from, to, ok)
	}
	if _, _, ok := r.Clamp(base.Add(5*time.Hour), base.Add(6*time.Hour)); ok {
		t.Fatalf("expected empty clamp")
	}
	if !r.Aligned(base.Add(2*time.Hour)) || r.Aligned(base.Add(time.Minute)) {
		t.Fatalf("unexpected alignment")
	}
}
