package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/consolidator/core/events"
	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records the events that
// are not reported directly by their producer. It stops when the context is
// canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	r, ok := sink.(coremetrics.FallbackRecorder)
	if !ok {
		return
	}
	eventbus.Listen(ctx, bus, func(e events.FallbackEvent) {
		_ = r.RecordFallback(coremetrics.FallbackEvent{
			RunID:  e.RunID,
			Reason: e.Reason,
			Reused: e.Reused,
			Time:   time.Now(),
		})
	})
}
