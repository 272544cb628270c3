package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/consolidator/config"
	"github.com/kilianp07/consolidator/connectors"
	sources "github.com/kilianp07/consolidator/connectors/factory"
	"github.com/kilianp07/consolidator/core/consolidator"
	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/metrics/eco"
	"github.com/kilianp07/consolidator/core/model"
	coremon "github.com/kilianp07/consolidator/core/monitoring"
	coremqtt "github.com/kilianp07/consolidator/core/mqtt"
	"github.com/kilianp07/consolidator/core/planlog"
	"github.com/kilianp07/consolidator/infra/kpi"
	"github.com/kilianp07/consolidator/infra/logger"
	"github.com/kilianp07/consolidator/infra/metrics"
	infmon "github.com/kilianp07/consolidator/infra/monitoring"
	"github.com/kilianp07/consolidator/infra/mqtt"
	"github.com/kilianp07/consolidator/infra/telemetry"
	"github.com/kilianp07/consolidator/internal/eventbus"
)

// LiveSource returns the current state of the EASC activities.
type LiveSource interface {
	Snapshot() []model.LiveMetric
}

// Service runs the control loop: every interval it fetches the inputs of the
// next planning range, consolidates them, stores the run and sends the plans
// to the EASCs. A failed consolidation reuses the last usable plan.
type Service struct {
	cfg    config.Config
	cons   *consolidator.Consolidator
	source connectors.Source
	runs   planlog.Store
	kpis   eco.Store
	pub    coremqtt.Publisher
	live   LiveSource
	tel    *telemetry.Manager
	sink   coremetrics.MetricsSink
	bus    eventbus.EventBus
	reg    prometheus.Registerer
	gather prometheus.Gatherer
	log    logger.Logger
	now    func() time.Time

	closers []func() error
}

// Option customizes a Service. Components set through options are not built
// from the configuration.
type Option func(*Service)

// WithSource sets the input source.
func WithSource(src connectors.Source) Option { return func(s *Service) { s.source = src } }

// WithPublisher sets the plan publisher.
func WithPublisher(p coremqtt.Publisher) Option { return func(s *Service) { s.pub = p } }

// WithLiveSource sets where live metrics are read before each consolidation.
func WithLiveSource(l LiveSource) Option { return func(s *Service) { s.live = l } }

// WithPlanLog sets the plan log.
func WithPlanLog(st planlog.Store) Option { return func(s *Service) { s.runs = st } }

// WithKPIStore sets the eco KPI store.
func WithKPIStore(st eco.Store) Option { return func(s *Service) { s.kpis = st } }

// WithMetrics sets the metrics sink.
func WithMetrics(sink coremetrics.MetricsSink) Option { return func(s *Service) { s.sink = sink } }

// WithBus sets the event bus.
func WithBus(b eventbus.EventBus) Option { return func(s *Service) { s.bus = b } }

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRegistry registers the service collectors on reg and serves g on the
// Prometheus endpoint instead of the default registry.
func WithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) Option {
	return func(s *Service) {
		s.reg = reg
		s.gather = g
	}
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{cfg: *cfg}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logger.New("service")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.reg == nil {
		s.reg = prometheus.DefaultRegisterer
	}
	if err := s.init(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) init() error {
	mon, err := infmon.NewSentryMonitor(s.cfg.Sentry)
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	if s.sink == nil {
		if s.sink, err = coremetrics.NewMetricsSink(s.cfg.Metrics.Sinks); err != nil {
			return err
		}
	}
	if s.bus == nil {
		s.bus = eventbus.New()
		s.closers = append(s.closers, func() error { s.bus.Close(); return nil })
	}
	s.cons, err = consolidator.New(s.cfg.Consolidator,
		consolidator.WithLogger(logger.New("consolidator")),
		consolidator.WithBus(s.bus),
		consolidator.WithMetrics(s.sink),
	)
	if err != nil {
		return err
	}
	if s.runs == nil {
		if s.runs, err = planlog.Open(s.cfg.PlanLog.Module()); err != nil {
			return err
		}
		s.closers = append(s.closers, s.runs.Close)
	}
	if s.kpis == nil {
		if err := s.openKPIs(); err != nil {
			return err
		}
	}
	if s.source == nil {
		if s.source, err = sources.NewSource(s.cfg.Loop.Input); err != nil {
			return fmt.Errorf("input: %w", err)
		}
	}
	if s.pub == nil && s.cfg.MQTT.Broker != "" {
		cli, err := mqtt.NewPahoClient(s.cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		s.pub = cli
		s.closers = append(s.closers, func() error { cli.Disconnect(); return nil })
	}
	if s.live == nil && s.cfg.Telemetry.Enabled {
		tel, err := telemetry.NewManager(s.cfg.MQTT, s.cfg.Telemetry, liveRecorder(s.sink), s.reg)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		s.tel = tel
		s.live = tel
	}
	return nil
}

func (s *Service) openKPIs() error {
	if s.cfg.KPI.Backend != "sqlite" {
		s.kpis = eco.NewMemoryStore()
		return nil
	}
	st, err := kpi.NewSQLiteStore(s.cfg.KPI.Path)
	if err != nil {
		return fmt.Errorf("kpi store: %w", err)
	}
	s.kpis = st
	s.closers = append(s.closers, st.Close)
	return nil
}

func liveRecorder(sink coremetrics.MetricsSink) coremetrics.LiveMetricRecorder {
	if r, ok := sink.(coremetrics.LiveMetricRecorder); ok {
		return r
	}
	return coremetrics.NopSink{}
}

// PlanLog returns the store of consolidation runs.
func (s *Service) PlanLog() planlog.Store { return s.runs }

// KPIs returns the eco KPI store.
func (s *Service) KPIs() eco.Store { return s.kpis }

// Run starts the HTTP endpoints, telemetry and the control loop, and blocks
// until the context is canceled. The first iteration runs immediately.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.tel != nil {
		go s.tel.Start(ctx)
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, s.gather, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Addr != "" {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}

	s.log.Infof("control loop started: every %s, horizon %s, slot %s",
		s.cfg.Loop.Interval(), s.cfg.Loop.Horizon(), s.cfg.Loop.Slot())
	ticker := time.NewTicker(s.cfg.Loop.Interval())
	defer ticker.Stop()
	for {
		s.iterate(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("iteration panic: %v", r)
			coremon.CaptureError(err, map[string]string{"module": "service"})
			loopIteration.WithLabelValues("error").Inc()
			s.log.Errorf("%v", err)
		}
	}()
	rec, err := s.RunOnce(ctx)
	switch {
	case err == nil:
		loopIteration.WithLabelValues("ok").Inc()
	case rec.Fallback:
		loopIteration.WithLabelValues("fallback").Inc()
		s.log.Errorf("iteration over %s: %v", rec.Range, err)
	default:
		loopIteration.WithLabelValues("error").Inc()
		s.log.Errorf("iteration: %v", err)
	}
}

// Close releases the resources opened by New.
func (s *Service) Close() error {
	if d, ok := s.bus.(interface{ Dropped() uint64 }); ok && d.Dropped() > 0 {
		s.log.Warnf("event bus dropped %d deliveries to slow subscribers", d.Dropped())
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
