package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/consolidator/core/events"
	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/metrics/eco"
	"github.com/kilianp07/consolidator/core/model"
	coremon "github.com/kilianp07/consolidator/core/monitoring"
	coremqtt "github.com/kilianp07/consolidator/core/mqtt"
	"github.com/kilianp07/consolidator/core/planlog"
)

// NextRange returns the planning range of an iteration started at now: the
// configured horizon starting at the next slot boundary.
func (s *Service) NextRange(now time.Time) (model.TimeRange, error) {
	slot := s.cfg.Loop.Slot()
	start := now.Truncate(slot).Add(slot)
	return model.NewTimeRange(start, start.Add(s.cfg.Loop.Horizon()), slot)
}

// RunOnce performs one iteration of the control loop and returns the stored
// record. When the inputs cannot be fetched or the consolidation fails, the
// last usable plan is sent again, the returned record has Fallback set and
// the error is returned.
func (s *Service) RunOnce(ctx context.Context) (planlog.Record, error) {
	now := s.now()
	r, err := s.NextRange(now)
	if err != nil {
		return planlog.Record{}, err
	}
	p, err := s.source.Fetch(ctx, r)
	if err != nil {
		return s.fallback(ctx, now, r, "", "fetch", err)
	}
	p.Live = mergeLive(p.Live, s.snapshot())

	res, err := s.cons.BuildPlans(ctx, p)
	if err != nil {
		return s.fallback(ctx, now, r, res.RunID, "consolidation", err)
	}
	if res.Stats.Status == model.StatusTimeout {
		s.log.Warnf("consolidation %s timed out, keeping the best plan found", res.RunID)
	}
	rec := planlog.Record{
		RunID:     res.RunID,
		Timestamp: now,
		Range:     r,
		Status:    res.Stats.Status,
		Plans:     res.Plans,
		Scores:    res.Stats.Scores,
		Summary:   res.Summary,
	}
	if err := s.runs.Append(ctx, rec); err != nil {
		s.log.Errorf("plan log: %v", err)
	}
	s.recordEco(res.Plans, p.Forecasts)
	if err := s.publishPlans(ctx, rec.RunID, rec.Plans); err != nil {
		s.log.Warnf("run %s: %v", rec.RunID, err)
	}
	return rec, nil
}

func (s *Service) snapshot() []model.LiveMetric {
	if s.live == nil {
		return nil
	}
	return s.live.Snapshot()
}

// mergeLive overlays the collected live metrics on the fetched ones. The
// newest metric of an (easc, activity, data center) wins.
func mergeLive(fetched, collected []model.LiveMetric) []model.LiveMetric {
	if len(collected) == 0 {
		return fetched
	}
	type key struct{ easc, activity, dc string }
	idx := make(map[key]int, len(fetched))
	out := append([]model.LiveMetric(nil), fetched...)
	for i, l := range out {
		idx[key{l.Easc, l.Activity, l.DataCenter}] = i
	}
	for _, l := range collected {
		k := key{l.Easc, l.Activity, l.DataCenter}
		if i, ok := idx[k]; ok {
			if l.At.After(out[i].At) {
				out[i] = l
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, l)
	}
	return out
}

// fallback stores a failed iteration and sends the last usable plan again.
func (s *Service) fallback(ctx context.Context, now time.Time, r model.TimeRange, runID, reason string, cause error) (planlog.Record, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	coremon.CaptureError(cause, map[string]string{
		"module": "service",
		"run_id": runID,
		"range":  r.String(),
		"reason": reason,
	})
	rec := planlog.Record{
		RunID:     runID,
		Timestamp: now,
		Range:     r,
		Fallback:  true,
		Error:     cause.Error(),
	}
	prev, ok, err := planlog.Latest(ctx, s.runs)
	if err != nil {
		s.log.Errorf("plan log: %v", err)
	}
	if ok {
		rec.Status = prev.Status
		rec.Plans = prev.Plans
		s.log.Warnf("run %s failed (%s), reusing plans of run %s", runID, reason, prev.RunID)
	} else {
		s.log.Errorf("run %s failed (%s) and no previous plan is available", runID, reason)
	}
	if err := s.runs.Append(ctx, rec); err != nil {
		s.log.Errorf("plan log: %v", err)
	}
	s.bus.Publish(events.FallbackEvent{RunID: runID, Reason: reason, Reused: ok})
	if ok {
		if err := s.publishPlans(ctx, runID, prev.Plans); err != nil {
			s.log.Warnf("run %s: %v", runID, err)
		}
	}
	return rec, fmt.Errorf("%s: %w", reason, cause)
}

func (s *Service) recordEco(plans []model.EascPlan, forecasts []model.SourceForecast) {
	recs := eco.Compute(plans, forecasts)
	if len(recs) == 0 {
		return
	}
	for _, r := range recs {
		if err := s.kpis.Add(r); err != nil {
			s.log.Warnf("kpi store: %v", err)
			break
		}
	}
	if er, ok := s.sink.(coremetrics.EcoRecorder); ok {
		if err := er.RecordEco(recs); err != nil {
			s.log.Warnf("record eco: %v", err)
		}
	}
}

// publishPlans sends every plan and waits for the acknowledgments. A failing
// EASC does not stop the others.
func (s *Service) publishPlans(ctx context.Context, runID string, plans []model.EascPlan) error {
	if s.pub == nil || len(plans) == 0 {
		return nil
	}
	timeout := s.cfg.Loop.AckTimeout()
	errs := make([]error, len(plans))
	var g errgroup.Group
	for i, plan := range plans {
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			id, err := s.pub.PublishPlan(runID, plan)
			if err != nil {
				planPublish.WithLabelValues("error").Inc()
				errs[i] = fmt.Errorf("easc %s: %w", plan.Easc, err)
				return nil
			}
			acked, err := s.pub.WaitForAck(id, timeout)
			if err == nil && !acked {
				err = coremqtt.ErrAckTimeout
			}
			if err != nil {
				planPublish.WithLabelValues("unacknowledged").Inc()
				errs[i] = fmt.Errorf("easc %s: %w", plan.Easc, err)
				return nil
			}
			planPublish.WithLabelValues("ok").Inc()
			s.log.Debugf("easc %s acknowledged command %s", plan.Easc, id)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
