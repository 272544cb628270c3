package file

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

const scenarioPath = "../../../core/scenario/testdata/two_datacenters.yaml"

func TestFetchReadsScenario(t *testing.T) {
	src, err := New(scenarioPath)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p, err := src.Fetch(context.Background(), model.TimeRange{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(p.Activities) != 1 || len(p.Forecasts) != 2 {
		t.Fatalf("unexpected problem %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid problem: %v", err)
	}
}

func TestFetchShiftsScenario(t *testing.T) {
	src, err := New(scenarioPath, WithShift())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	start := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	r, _ := model.NewTimeRange(start, start.Add(6*time.Hour), time.Hour)
	p, err := src.Fetch(context.Background(), r)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Window != r {
		t.Fatalf("window not shifted: %v", p.Window)
	}
	if !p.Forecasts[1].Range.Start.Equal(start) || !p.Budgets[0].Range.Start.Equal(start) {
		t.Fatalf("inputs not shifted")
	}
	slo := p.Activities[0].DataCenters[0].SLOs[0]
	if !slo.Start.Equal(start) || !slo.End.Equal(start.Add(6*time.Hour)) {
		t.Fatalf("slo not shifted: %v %v", slo.Start, slo.End)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid problem: %v", err)
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error")
	}
}
