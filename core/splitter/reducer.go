package splitter

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/consolidator/core/factory"
	"github.com/kilianp07/consolidator/core/model"
)

// Reducer selects the cut points to keep among the candidates of r. points
// are sorted, strictly inside r and aligned on its slots. Reducers may only
// drop points; anything else they return is ignored.
type Reducer interface {
	Reduce(r model.TimeRange, points []time.Time) []time.Time
}

// ReducerFunc adapts a function to the Reducer interface.
type ReducerFunc func(r model.TimeRange, points []time.Time) []time.Time

// Reduce calls f.
func (f ReducerFunc) Reduce(r model.TimeRange, points []time.Time) []time.Time { return f(r, points) }

// Pass keeps every candidate.
type Pass struct{}

// Reduce returns points unchanged.
func (Pass) Reduce(_ model.TimeRange, points []time.Time) []time.Time { return points }

// Proportional drops the candidates closer than Factor times the range
// duration to the previously kept point or to the end of the range.
type Proportional struct {
	Factor float64 `json:"factor"`
}

// Reduce coalesces nearby points.
func (p Proportional) Reduce(r model.TimeRange, points []time.Time) []time.Time {
	gap := time.Duration(p.Factor * float64(r.End.Sub(r.Start)))
	if gap <= 0 {
		return points
	}
	var out []time.Time
	last := r.Start
	for _, t := range points {
		if t.Sub(last) < gap || r.End.Sub(t) < gap {
			continue
		}
		out = append(out, t)
		last = t
	}
	return out
}

// MaxWindows keeps at most N-1 points, chosen nearest to an even division of
// the range into N windows.
type MaxWindows struct {
	N int `json:"n"`
}

// Reduce picks the points closest to the even cuts.
func (m MaxWindows) Reduce(r model.TimeRange, points []time.Time) []time.Time {
	if m.N <= 1 {
		return nil
	}
	if len(points) <= m.N-1 {
		return points
	}
	span := r.End.Sub(r.Start)
	used := make([]bool, len(points))
	var out []time.Time
	for k := 1; k < m.N; k++ {
		target := r.Start.Add(span * time.Duration(k) / time.Duration(m.N))
		best := -1
		var bestDist time.Duration
		for i, t := range points {
			if used[i] {
				continue
			}
			d := t.Sub(target)
			if d < 0 {
				d = -d
			}
			if best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}
		used[best] = true
		out = append(out, points[best])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Reducers holds the available reducers: "pass", "proportional" and
// "max_windows".
var Reducers = factory.NewRegistry[Reducer]()

func init() {
	Reducers.MustRegister("pass", func(map[string]any) (Reducer, error) { return Pass{}, nil })
	Reducers.MustRegister("proportional", func(conf map[string]any) (Reducer, error) {
		var p Proportional
		if err := factory.Decode(conf, &p); err != nil {
			return nil, err
		}
		if p.Factor < 0 || p.Factor >= 1 {
			return nil, fmt.Errorf("factor %.3f out of [0,1)", p.Factor)
		}
		return p, nil
	})
	Reducers.MustRegister("max_windows", func(conf map[string]any) (Reducer, error) {
		var m MaxWindows
		if err := factory.Decode(conf, &m); err != nil {
			return nil, err
		}
		if m.N < 1 {
			return nil, errors.New("n must be positive")
		}
		return m, nil
	})
}

// NewReducer creates the reducer described by cfg, defaulting to "pass".
func NewReducer(cfg factory.ModuleConfig) (Reducer, error) {
	if cfg.Type == "" {
		cfg.Type = "pass"
	}
	r, err := Reducers.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("reducer: %w", err)
	}
	return r, nil
}
