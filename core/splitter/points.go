package splitter

import (
	"sort"
	"time"

	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/scheduler"
)

// Interval is a span inside which no cut may be placed.
type Interval struct {
	Start  time.Time
	End    time.Time
	Reason string
}

// Inside reports whether t lies strictly inside the interval.
func (i Interval) Inside(t time.Time) bool {
	return t.After(i.Start) && t.Before(i.End)
}

// Candidates returns the sorted instants, strictly inside the problem window
// and snapped down to its slots, where an input changes.
func Candidates(p scheduler.Problem) []time.Time {
	r := p.Window
	var raw []time.Time
	for _, f := range p.Forecasts {
		raw = append(raw, f.Range.Start, f.Range.End)
		raw = append(raw, f.Boundaries()...)
	}
	for _, b := range p.Budgets {
		raw = append(raw, b.Range.Start, b.Range.End)
		raw = append(raw, b.Boundaries()...)
	}
	for _, ip := range p.IdealPlans {
		raw = append(raw, ip.Range.Start, ip.Range.End)
	}
	for _, o := range p.Objectives {
		raw = append(raw, o.Boundaries(r)...)
	}
	for _, a := range p.Activities {
		for _, s := range a.SLOs() {
			raw = append(raw, s.Start, s.End)
		}
	}
	for _, pr := range precedences(p) {
		if end, ok := lastEnd(pr.pred); ok {
			raw = append(raw, end)
		}
	}
	return normalize(r, raw)
}

// Couplings returns the intervals that must be solved inside a single window.
func Couplings(p scheduler.Problem) []Interval {
	r := p.Window
	var out []Interval
	for _, b := range p.Budgets {
		for _, q := range b.Quotas {
			out = append(out, Interval{Start: q.Start, End: q.End, Reason: "quota " + b.Easc + "/" + b.DataCenter})
		}
	}
	for _, a := range p.Activities {
		for _, s := range a.SLOs() {
			if s.Kind == model.SLOCumulative {
				out = append(out, Interval{Start: s.Start, End: s.End, Reason: "cumulative slo " + a.Name})
			}
		}
	}
	for _, o := range p.Objectives {
		if o.Metric != model.MetricEnergy {
			continue
		}
		var last time.Time
		for i := 0; i < r.Slots(); i++ {
			start, end, ok := o.Occurrence(r.SlotStart(i))
			if !ok || start.Equal(last) {
				continue
			}
			last = start
			out = append(out, Interval{Start: start, End: end, Reason: "energy objective " + o.Name})
		}
	}
	for _, pr := range precedences(p) {
		start, ok := firstStart(pr.pred)
		if !ok {
			start = r.Start
		}
		if s, ok := firstStart(pr.succ); !ok {
			start = r.Start
		} else if s.Before(start) {
			start = s
		}
		end, ok := lastEnd(pr.pred)
		if !ok {
			end = r.End
		}
		out = append(out, Interval{Start: start, End: end, Reason: "precedence " + pr.pred.Name + " before " + pr.succ.Name})
	}
	return out
}

// Points returns the cut points kept by reducer: candidates outside every
// coupling interval, filtered by the reducer.
func Points(p scheduler.Problem, reducer Reducer) []time.Time {
	couplings := Couplings(p)
	var free []time.Time
	for _, t := range Candidates(p) {
		if !coupled(couplings, t) {
			free = append(free, t)
		}
	}
	if reducer == nil || len(free) == 0 {
		return free
	}
	kept := reducer.Reduce(p.Window, append([]time.Time(nil), free...))
	allowed := make(map[int64]bool, len(free))
	for _, t := range free {
		allowed[t.UnixNano()] = true
	}
	var out []time.Time
	for _, t := range normalize(p.Window, kept) {
		if allowed[t.UnixNano()] {
			out = append(out, t)
		}
	}
	return out
}

// Windows cuts r at points. The windows tile r without gap or overlap.
func Windows(r model.TimeRange, points []time.Time) []model.TimeRange {
	points = normalize(r, points)
	out := make([]model.TimeRange, 0, len(points)+1)
	from := 0
	for _, t := range points {
		to := r.SlotIndex(t)
		out = append(out, r.Sub(from, to))
		from = to
	}
	return append(out, r.Sub(from, r.Slots()))
}

func coupled(cs []Interval, t time.Time) bool {
	for _, c := range cs {
		if c.Inside(t) {
			return true
		}
	}
	return false
}

// normalize snaps instants down to slot boundaries, keeps the ones strictly
// inside r, sorts and deduplicates them.
func normalize(r model.TimeRange, ts []time.Time) []time.Time {
	seen := make(map[int64]bool, len(ts))
	var out []time.Time
	for _, t := range ts {
		if !t.After(r.Start) || !t.Before(r.End) {
			continue
		}
		t = r.SlotStart(r.SlotIndex(t))
		if !t.After(r.Start) || seen[t.UnixNano()] {
			continue
		}
		seen[t.UnixNano()] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

type precedence struct {
	pred, succ model.ActivitySpec
}

// precedences resolves activity precedences, preferring an activity of the
// same EASC when names collide.
func precedences(p scheduler.Problem) []precedence {
	var out []precedence
	for ai, a := range p.Activities {
		for _, name := range a.Precedences {
			found := -1
			for i, b := range p.Activities {
				if b.Name != name {
					continue
				}
				if b.Easc == a.Easc {
					found = i
					break
				}
				if found < 0 {
					found = i
				}
			}
			if found >= 0 && found != ai {
				out = append(out, precedence{pred: p.Activities[found], succ: a})
			}
		}
	}
	return out
}

func firstStart(a model.ActivitySpec) (time.Time, bool) {
	slos := a.SLOs()
	if len(slos) == 0 {
		return time.Time{}, false
	}
	return slos[0].Start, true
}

func lastEnd(a model.ActivitySpec) (time.Time, bool) {
	var end time.Time
	found := false
	for _, s := range a.SLOs() {
		if !found || s.End.After(end) {
			end, found = s.End, true
		}
	}
	return end, found
}
