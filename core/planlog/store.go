// Package planlog keeps the history of consolidation runs so that the last
// usable plan can be reused when a consolidation fails.
package planlog

import (
	"context"
	"sort"
	"time"

	"github.com/kilianp07/consolidator/core/merger"
	"github.com/kilianp07/consolidator/core/model"
)

// Record captures one consolidation run and its plans.
type Record struct {
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Range     model.TimeRange `json:"range"`
	Status    model.Status    `json:"status"`
	// Fallback is set when Plans were reused from an earlier run.
	Fallback bool             `json:"fallback,omitempty"`
	Error    string           `json:"error,omitempty"`
	Plans    []model.EascPlan `json:"plans"`
	Scores   []model.Score    `json:"scores,omitempty"`
	Summary  merger.Summary   `json:"summary"`
}

// Usable reports whether the record carries plans that can be applied.
func (r Record) Usable() bool { return r.Error == "" && len(r.Plans) > 0 }

// HasEasc reports whether the record holds a plan for easc.
func (r Record) HasEasc(easc string) bool {
	for _, p := range r.Plans {
		if p.Easc == easc {
			return true
		}
	}
	return false
}

// Query defines filters for retrieving records. Zero values match everything.
type Query struct {
	Start time.Time
	End   time.Time
	Easc  string
	// Limit keeps the most recent records only.
	Limit int
}

func (q Query) matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Easc != "" && !r.HasEasc(q.Easc) {
		return false
	}
	return true
}

// finish orders records chronologically and applies the limit.
func (q Query) finish(recs []Record) []Record {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Latest returns the most recent usable record of s.
func Latest(ctx context.Context, s Store) (Record, bool, error) {
	recs, err := s.Query(ctx, Query{})
	if err != nil {
		return Record{}, false, err
	}
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Usable() {
			return recs[i], true, nil
		}
	}
	return Record{}, false, nil
}
