package merger

import (
	"time"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/kilianp07/consolidator/core/model"
)

// MergeStatistics combines per-window statistics. A single entry is returned
// unchanged.
//
// The merged trace starts with the sum of every window's first incumbent,
// stamped at the latest of those first timestamps. The later improvements of
// all windows are then replayed in wall-clock order, each adding its delta to
// the running value. Windows that never found a solution do not contribute.
func MergeStatistics(stats []model.Statistics) model.Statistics {
	if len(stats) == 1 {
		return stats[0]
	}
	var out model.Statistics
	if len(stats) == 0 {
		return out
	}
	out.Window = stats[0].Window
	out.Start, out.End = stats[0].Start, stats[0].End
	bounded := true
	var bound float64
	for _, s := range stats {
		if s.Start.Before(out.Start) {
			out.Start = s.Start
		}
		if s.End.After(out.End) {
			out.End = s.End
		}
		if s.Window.Start.Before(out.Window.Start) {
			out.Window.Start = s.Window.Start
		}
		if s.Window.End.After(out.Window.End) {
			out.Window.End = s.Window.End
		}
		out.Status = worse(out.Status, s.Status)
		out.Nodes += s.Nodes
		out.BrownEnergy += s.BrownEnergy
		out.Carbon += s.Carbon
		if s.Bound == nil {
			bounded = false
		} else {
			bound += *s.Bound
		}
	}
	if bounded {
		out.Bound = &bound
	}
	replay(&out, stats)
	return out
}

// worse returns the status reported for a merge: any timeout wins, then any
// infeasibility.
func worse(a, b model.Status) model.Status {
	rank := func(s model.Status) int {
		switch s {
		case model.StatusTimeout:
			return 2
		case model.StatusInfeasible:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// cursor points at the next improvement of one window.
type cursor struct {
	window int
	index  int
	at     time.Time
}

func byTime(a, b interface{}) int {
	ca, cb := a.(cursor), b.(cursor)
	switch {
	case ca.at.Before(cb.at):
		return -1
	case cb.at.Before(ca.at):
		return 1
	case ca.window != cb.window:
		return ca.window - cb.window
	}
	return 0
}

func replay(out *model.Statistics, stats []model.Statistics) {
	var initial float64
	var first time.Time
	found := false
	heap := binaryheap.NewWith(byTime)
	for wi, s := range stats {
		if len(s.Scores) == 0 {
			continue
		}
		initial += s.Scores[0].Value
		if !found || s.Scores[0].At.After(first) {
			first = s.Scores[0].At
		}
		found = true
		if len(s.Scores) > 1 {
			heap.Push(cursor{window: wi, index: 1, at: s.Scores[1].At})
		}
	}
	if !found {
		return
	}
	value := initial
	out.Record(value, first)
	for !heap.Empty() {
		v, _ := heap.Pop()
		c := v.(cursor)
		scores := stats[c.window].Scores
		value += scores[c.index].Value - scores[c.index-1].Value
		out.Record(value, c.at)
		if next := c.index + 1; next < len(scores) {
			heap.Push(cursor{window: c.window, index: next, at: scores[next].At})
		}
	}
}
