package consolidator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/consolidator/core/events"
	"github.com/kilianp07/consolidator/core/logger"
	"github.com/kilianp07/consolidator/core/merger"
	"github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/scheduler"
	"github.com/kilianp07/consolidator/core/splitter"
	ilogger "github.com/kilianp07/consolidator/infra/logger"
	"github.com/kilianp07/consolidator/internal/eventbus"
)

// Result is the outcome of a consolidation.
type Result struct {
	RunID string
	// Plans holds one plan per EASC over the whole range.
	Plans []model.EascPlan
	// Stats is the merged anytime trace; Stats.Plan equals Plans.
	Stats model.Statistics
	// Windows holds the statistics of every window in chronological order.
	Windows []model.Statistics
	Summary merger.Summary
}

// Consolidator builds option plans over a planning range.
type Consolidator struct {
	cfg     Config
	reducer splitter.Reducer
	engine  scheduler.Engine
	log     logger.Logger
	bus     eventbus.EventBus
	sink    metrics.MetricsSink
}

// Option configures a Consolidator.
type Option func(*Consolidator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Consolidator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithBus publishes progress events on b.
func WithBus(b eventbus.EventBus) Option {
	return func(c *Consolidator) { c.bus = b }
}

// WithMetrics records every run on s.
func WithMetrics(s metrics.MetricsSink) Option {
	return func(c *Consolidator) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithEngine replaces the configured engine.
func WithEngine(e scheduler.Engine) Option {
	return func(c *Consolidator) {
		if e != nil {
			c.engine = e
		}
	}
}

// WithReducer replaces the configured reducer.
func WithReducer(r splitter.Reducer) Option {
	return func(c *Consolidator) {
		if r != nil {
			c.reducer = r
		}
	}
}

// New builds a Consolidator from cfg.
func New(cfg Config, opts ...Option) (*Consolidator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("consolidator config: %w", err)
	}
	red, err := splitter.NewReducer(cfg.Reducer)
	if err != nil {
		return nil, err
	}
	eng, err := scheduler.NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}
	c := &Consolidator{
		cfg:     cfg,
		reducer: red,
		engine:  eng,
		log:     ilogger.NopLogger{},
		sink:    metrics.NopSink{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Config returns the configuration in use.
func (c *Consolidator) Config() Config { return c.cfg }

// RunOption overrides the solving parameters of a single call.
type RunOption func(*scheduler.Config)

// WithTimeout bounds the search of every window to seconds.
func WithTimeout(seconds float64) RunOption {
	return func(c *scheduler.Config) { c.TimeoutSeconds = seconds }
}

// WithOptimize sets whether windows keep searching after their first
// solution.
func WithOptimize(v bool) RunOption {
	return func(c *scheduler.Config) { c.Optimize = v }
}

// WithIdealHeuristic sets whether the search follows the ideal power plans.
func WithIdealHeuristic(v bool) RunOption {
	return func(c *scheduler.Config) { c.IdealHeuristic = v }
}

type windowResult struct {
	plans []model.EascPlan
	stats model.Statistics
}

// BuildPlans splits p, solves every window and merges the results. The
// first failing window cancels the others. Replay sequences of p are pinned
// in every window.
func (c *Consolidator) BuildPlans(ctx context.Context, p scheduler.Problem, opts ...RunOption) (Result, error) {
	runID := uuid.NewString()
	cfg := c.cfg.Config
	for _, o := range opts {
		o(&cfg)
	}
	start := time.Now()
	res, err := c.build(ctx, runID, p, cfg)
	c.report(p.Window, res, err, time.Since(start))
	return res, err
}

func (c *Consolidator) build(ctx context.Context, runID string, p scheduler.Problem, cfg scheduler.Config) (Result, error) {
	res := Result{RunID: runID}
	hook := func(w model.TimeRange, value float64, at time.Time) {
		c.publish(events.IncumbentEvent{RunID: runID, Window: w, Value: value, At: at})
	}
	sp := splitter.New(c.reducer, c.log)
	scheds, err := sp.Split(p, cfg,
		scheduler.WithEngine(c.engine),
		scheduler.WithLogger(c.log),
		scheduler.WithIncumbentHook(hook),
	)
	if err != nil {
		return res, &ConsolidationError{RunID: runID, Op: "split", Cause: err}
	}
	outs, err := c.solve(ctx, runID, scheds)
	if err != nil {
		return res, &ConsolidationError{RunID: runID, Op: "solve", Cause: err}
	}
	plans := make([][]model.EascPlan, len(outs))
	res.Windows = make([]model.Statistics, len(outs))
	for i, o := range outs {
		plans[i] = o.plans
		res.Windows[i] = o.stats
	}
	merged, err := merger.MergePlans(plans)
	if err != nil {
		return res, &ConsolidationError{RunID: runID, Op: "merge", Cause: err}
	}
	res.Plans = merged
	res.Stats = merger.MergeStatistics(res.Windows)
	res.Stats.Plan = merged
	res.Summary = merger.Summarize(res.Windows)
	return res, nil
}

// solve runs the schedulers on at most cfg.Workers goroutines. Results are
// returned in completion order.
func (c *Consolidator) solve(ctx context.Context, runID string, scheds []*scheduler.Scheduler) ([]windowResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(scheds), c.cfg.Workers))
	done := make(chan windowResult, len(scheds))
	for _, s := range scheds {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("window %s: panic: %v", s.Window(), r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			plans, stats, err := s.Solve(gctx)
			c.publish(events.WindowSolvedEvent{RunID: runID, Window: s.Window(), Stats: stats, Err: err})
			if err != nil {
				return err
			}
			c.recordWindow(runID, stats)
			done <- windowResult{plans: plans, stats: stats}
			return nil
		})
	}
	err := g.Wait()
	close(done)
	if err != nil {
		return nil, err
	}
	out := make([]windowResult, 0, len(scheds))
	for r := range done {
		out = append(out, r)
	}
	return out, nil
}

func (c *Consolidator) publish(e eventbus.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

func (c *Consolidator) recordWindow(runID string, st model.Statistics) {
	windowSolve.WithLabelValues(st.Status.String()).Observe(st.Duration().Seconds())
	wr, ok := c.sink.(metrics.WindowRecorder)
	if !ok {
		return
	}
	best, solved := st.Best()
	rec := metrics.WindowRecord{
		RunID:     runID,
		Window:    st.Window,
		Status:    st.Status,
		Nodes:     st.Nodes,
		Objective: best,
		Solved:    solved,
		Duration:  st.Duration(),
	}
	if err := wr.RecordWindow(rec); err != nil {
		c.log.Warnf("record window %s: %v", st.Window, err)
	}
}

// report publishes the outcome of a run on every observability channel.
func (c *Consolidator) report(r model.TimeRange, res Result, err error, d time.Duration) {
	status := res.Stats.Status.String()
	if err != nil {
		status = "error"
	}
	runsTotal.WithLabelValues(status).Inc()
	runDuration.Observe(d.Seconds())
	runWindows.Set(float64(len(res.Windows)))
	best, solved := res.Stats.Best()
	if solved {
		objectiveValue.Set(best)
	}

	c.publish(events.ConsolidationEvent{
		RunID:    res.RunID,
		Range:    r,
		Windows:  len(res.Windows),
		Stats:    res.Stats,
		Duration: d,
		Err:      err,
	})

	rec := metrics.RunRecord{
		RunID:       res.RunID,
		Range:       r,
		Windows:     len(res.Windows),
		Status:      res.Stats.Status,
		Objective:   best,
		Solved:      solved,
		BrownEnergy: res.Stats.BrownEnergy,
		Carbon:      res.Stats.Carbon,
		Duration:    d,
		Time:        time.Now(),
	}
	if err != nil {
		rec.Err = err.Error()
	}
	var errs []error
	errs = append(errs, c.sink.RecordRun(rec))
	if err == nil {
		if tr, ok := c.sink.(metrics.TraceRecorder); ok {
			errs = append(errs, tr.RecordTrace(res.RunID, res.Stats.Scores))
		}
		if pr, ok := c.sink.(metrics.PowerRecorder); ok {
			errs = append(errs, pr.RecordPlannedPower(plannedPower(res.RunID, r, res.Plans)))
		}
	}
	if e := errors.Join(errs...); e != nil {
		c.log.Warnf("record run %s: %v", res.RunID, e)
	}

	if err != nil {
		c.log.Errorf("consolidation %s over %s failed after %s: %v", res.RunID, r, d, err)
		return
	}
	c.log.Infof("consolidation %s over %s: %d windows, status %s, best %.3f, %s",
		res.RunID, r, len(res.Windows), status, best, d)
	c.log.Debugw("consolidation summary", map[string]any{
		"run_id":      res.RunID,
		"timeouts":    res.Summary.Timeouts,
		"infeasible":  res.Summary.Infeasible,
		"mean_solve":  res.Summary.MeanSeconds,
		"max_solve":   res.Summary.MaxSeconds,
		"trace_len":   len(res.Stats.Scores),
		"brown_wh":    res.Stats.BrownEnergy,
		"carbon":      res.Stats.Carbon,
		"nodes_total": res.Stats.Nodes,
	})
}

func plannedPower(runID string, r model.TimeRange, plans []model.EascPlan) []metrics.PlannedPower {
	prof := model.PowerProfile(plans)
	out := make([]metrics.PlannedPower, 0, len(prof))
	for dc, p := range prof {
		out = append(out, metrics.PlannedPower{RunID: runID, DataCenter: dc, Range: r, Power: p})
	}
	return out
}
