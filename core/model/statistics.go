package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the outcome of solving one (sub-)problem.
type Status int

const (
	StatusOK Status = iota
	StatusInfeasible
	StatusTimeout
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInfeasible:
		return "infeasible"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ok":
		*s = StatusOK
	case "infeasible":
		*s = StatusInfeasible
	case "timeout":
		*s = StatusTimeout
	default:
		return fmt.Errorf("unknown status %q", string(b))
	}
	return nil
}

// Score is one point of the anytime trace.
type Score struct {
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

// Statistics is the anytime solving trace of one (sub-)problem.
type Statistics struct {
	Window      TimeRange  `json:"window"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Status      Status     `json:"status"`
	Scores      []Score    `json:"scores"`
	Plan        []EascPlan `json:"plan,omitempty"`
	Bound       *float64   `json:"bound,omitempty"`
	Nodes       int64      `json:"nodes"`
	BrownEnergy float64    `json:"brown_energy_wh"`
	Carbon      float64    `json:"carbon"`
}

// Record appends an improvement to the trace. Timestamps are kept strictly
// increasing: an instant not after the previous one is moved one nanosecond
// past it.
func (s *Statistics) Record(value float64, at time.Time) {
	if n := len(s.Scores); n > 0 {
		last := s.Scores[n-1].At
		if !at.After(last) {
			at = last.Add(time.Nanosecond)
		}
	}
	s.Scores = append(s.Scores, Score{Value: value, At: at})
}

// Best returns the last recorded value.
func (s Statistics) Best() (float64, bool) {
	if len(s.Scores) == 0 {
		return 0, false
	}
	return s.Scores[len(s.Scores)-1].Value, true
}

// Duration returns the wall-clock time spent solving.
func (s Statistics) Duration() time.Duration { return s.End.Sub(s.Start) }

// MonotonicTrace reports whether the trace timestamps strictly increase.
func (s Statistics) MonotonicTrace() bool {
	for i := 1; i < len(s.Scores); i++ {
		if !s.Scores[i].At.After(s.Scores[i-1].At) {
			return false
		}
	}
	return true
}

// String renders a short summary for logs.
func (s Statistics) String() string {
	b, _ := json.Marshal(struct {
		Status string  `json:"status"`
		Points int     `json:"points"`
		Nodes  int64   `json:"nodes"`
		Secs   float64 `json:"seconds"`
	}{s.Status.String(), len(s.Scores), s.Nodes, s.Duration().Seconds()})
	return string(b)
}
