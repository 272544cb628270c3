package scenarios

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/consolidator/app"
	"github.com/kilianp07/consolidator/config"
	"github.com/kilianp07/consolidator/connectors"
	"github.com/kilianp07/consolidator/connectors/clients/file"
	sources "github.com/kilianp07/consolidator/connectors/factory"
	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/planlog"
	"github.com/kilianp07/consolidator/core/scheduler"
	"github.com/kilianp07/consolidator/infra/logger"
	"github.com/kilianp07/consolidator/infra/metrics"
	"github.com/kilianp07/consolidator/infra/mqtt"
)

var errGatewayDown = errors.New("gateway unavailable")

// scripted fails every fetch from the failFrom-th call on.
type scripted struct {
	src      connectors.Source
	failFrom int
	calls    int
}

func (s *scripted) Fetch(ctx context.Context, r model.TimeRange) (scheduler.Problem, error) {
	s.calls++
	if s.failFrom > 0 && s.calls >= s.failFrom {
		return scheduler.Problem{}, errGatewayDown
	}
	return s.src.Fetch(ctx, r)
}

// RunCase drives the control loop through the iterations of c, one loop
// interval apart, and checks the published plans and fallbacks.
func RunCase(t *testing.T, c *Case) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	src, err := file.New(c.path, file.WithShift())
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	pub := mqtt.NewMockPublisher()
	for _, e := range c.FailEascs {
		pub.FailEascs[e] = true
	}
	runs := planlog.NewMemoryStore()

	r := c.problem.Range
	cfg := &config.Config{}
	cfg.Loop = config.LoopConfig{
		IntervalSeconds: int(r.Slot / time.Second),
		HorizonHours:    int(r.End.Sub(r.Start) / time.Hour),
		SlotMinutes:     int(r.Slot / time.Minute),
		Input:           sources.SourceConfig{Type: sources.IDFile, Path: c.path, Shift: true},
	}
	cfg.PlanLog.Backend = "memory"
	cfg.SetDefaults()

	now := r.Start
	svc, err := app.New(cfg,
		app.WithSource(&scripted{src: src, failFrom: c.FailFetchFrom}),
		app.WithPublisher(pub),
		app.WithPlanLog(runs),
		app.WithMetrics(sink),
		app.WithLogger(logger.NopLogger{}),
		app.WithClock(func() time.Time { return now }),
		app.WithRegistry(reg, reg),
	)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer svc.Close()

	fallbacks := 0
	for i := 0; i < c.Iterations; i++ {
		rec, err := svc.RunOnce(context.Background())
		if rec.Fallback {
			fallbacks++
		} else if err != nil {
			t.Fatalf("iteration %d: %v", i+1, err)
		}
		now = now.Add(cfg.Loop.Interval())
	}

	if got := pub.Sent(); got != c.Expected.Published {
		t.Errorf("case %s expected %d published plans, got %d", c.Name, c.Expected.Published, got)
	}
	if fallbacks != c.Expected.Fallbacks {
		t.Errorf("case %s expected %d fallbacks, got %d", c.Name, c.Expected.Fallbacks, fallbacks)
	}
	recs, err := runs.Query(context.Background(), planlog.Query{})
	if err != nil {
		t.Fatalf("plan log: %v", err)
	}
	if len(recs) != c.Iterations {
		t.Errorf("case %s expected %d logged runs, got %d", c.Name, c.Iterations, len(recs))
	}
}
