package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Enumerations are encoded by name so that documents stay readable.

func (r Relocability) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Relocability) UnmarshalText(b []byte) error {
	v, err := ParseRelocability(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func (m MetricType) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MetricType) UnmarshalText(b []byte) error {
	v, err := ParseMetricType(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (o Operator) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Operator) UnmarshalText(b []byte) error {
	v, err := ParseOperator(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// ParseSLOKind converts "instant" or "cumulative" into an SLOKind.
func ParseSLOKind(s string) (SLOKind, error) {
	switch s {
	case "", "instant", "INSTANT":
		return SLOInstant, nil
	case "cumulative", "CUMULATIVE":
		return SLOCumulative, nil
	}
	return 0, fmt.Errorf("unknown slo kind %q", s)
}

func (k SLOKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *SLOKind) UnmarshalText(b []byte) error {
	v, err := ParseSLOKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Duration accepts either a Go duration string ("15m") or a number of
// nanoseconds when decoded, and is encoded as a string.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	*d = Duration(n)
	return nil
}

type timeRangeJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Slot  Duration  `json:"slot"`
}

func (r TimeRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeRangeJSON{Start: r.Start, End: r.End, Slot: Duration(r.Slot)})
}

func (r *TimeRange) UnmarshalJSON(b []byte) error {
	var v timeRangeJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = TimeRange{Start: v.Start, End: v.End, Slot: time.Duration(v.Slot)}
	return nil
}

type timeFrameJSON struct {
	Start    time.Time  `json:"start"`
	End      time.Time  `json:"end"`
	Every    Duration   `json:"every,omitempty"`
	Duration Duration   `json:"duration,omitempty"`
	Until    *time.Time `json:"until,omitempty"`
}

func (f TimeFrame) MarshalJSON() ([]byte, error) {
	v := timeFrameJSON{Start: f.Start, End: f.End, Every: Duration(f.Every), Duration: Duration(f.Duration)}
	if !f.Until.IsZero() {
		v.Until = &f.Until
	}
	return json.Marshal(v)
}

func (f *TimeFrame) UnmarshalJSON(b []byte) error {
	var v timeFrameJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = TimeFrame{Start: v.Start, End: v.End, Every: time.Duration(v.Every), Duration: time.Duration(v.Duration)}
	if v.Until != nil {
		f.Until = *v.Until
	}
	return nil
}
