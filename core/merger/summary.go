package merger

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/consolidator/core/model"
)

// Summary describes how the windows of a consolidation were solved.
type Summary struct {
	Windows     int     `json:"windows"`
	Timeouts    int     `json:"timeouts"`
	Infeasible  int     `json:"infeasible"`
	MeanSeconds float64 `json:"mean_seconds"`
	MaxSeconds  float64 `json:"max_seconds"`
	MeanSlots   float64 `json:"mean_slots"`
}

// Summarize computes per-window solve figures.
func Summarize(stats []model.Statistics) Summary {
	s := Summary{Windows: len(stats)}
	if len(stats) == 0 {
		return s
	}
	secs := make([]float64, len(stats))
	slots := make([]float64, len(stats))
	for i, st := range stats {
		secs[i] = st.Duration().Seconds()
		slots[i] = float64(st.Window.Slots())
		switch st.Status {
		case model.StatusTimeout:
			s.Timeouts++
		case model.StatusInfeasible:
			s.Infeasible++
		}
	}
	s.MeanSeconds = stat.Mean(secs, nil)
	s.MaxSeconds = floats.Max(secs)
	s.MeanSlots = stat.Mean(slots, nil)
	return s
}
