package ecokpi

import (
	"context"
	"fmt"

	"github.com/kilianp07/consolidator/connectors"
	eco "github.com/kilianp07/consolidator/core/metrics/eco"
	"github.com/kilianp07/consolidator/core/planlog"
)

// Backfill processes the consolidation runs matching q and populates the
// store. Forecasts are fetched again from src for the range of every run.
// Runs whose plans were reused from an earlier run are skipped so energy is
// not counted twice. It returns the number of runs processed.
func Backfill(ctx context.Context, runs planlog.Store, q planlog.Query, src connectors.Source, store eco.Store) (int, error) {
	history, err := runs.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, h := range history {
		if !h.Usable() {
			continue
		}
		p, err := src.Fetch(ctx, h.Range)
		if err != nil {
			return n, fmt.Errorf("run %s: %w", h.RunID, err)
		}
		for _, rec := range eco.Compute(h.Plans, p.Forecasts) {
			if err := store.Add(rec); err != nil {
				return n, err
			}
		}
		n++
	}
	return n, nil
}
