// Package scenario reads documents describing the inputs of one control-loop
// iteration. Ranges of forecasts, budgets and ideal plans may be omitted and
// default to the scenario range.
package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/scheduler"
)

// Expected holds optional assertions on the consolidation outcome.
type Expected struct {
	Status     string   `json:"status,omitempty"`
	MinWindows int      `json:"min_windows,omitempty"`
	MaxBrownWh *float64 `json:"max_brown_wh,omitempty"`
}

// Scenario is one planning problem with its expectations.
type Scenario struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Range       model.TimeRange          `json:"range"`
	Objectives  []model.Objective        `json:"objectives,omitempty"`
	Forecasts   []model.SourceForecast   `json:"forecasts"`
	IdealPlans  []model.IdealPlan        `json:"ideal_plans,omitempty"`
	Budgets     []model.PowerBudget      `json:"budgets,omitempty"`
	Activities  []model.ActivitySpec     `json:"activities"`
	PastPower   []model.PowerSample      `json:"past_power,omitempty"`
	PastService []model.PastServiceLevel `json:"past_service,omitempty"`
	Live        []model.LiveMetric       `json:"live,omitempty"`
	Replay      []model.ReplaySpec       `json:"replay,omitempty"`
	Expected    Expected                 `json:"expected"`
}

// Load reads a YAML or JSON scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	sc, err := Decode(f, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Decode reads a scenario from r. YAML documents are converted to JSON first
// so that both formats share the json field names of the model.
func Decode(r io.Reader, format string) (*Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "yaml", "yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, err
		}
	case "json":
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	var sc Scenario
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil {
		return nil, err
	}
	// The problem shares the scenario slices.
	p := sc.Problem()
	p.FillRanges()
	if err := sc.Range.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Problem returns the planning problem of the scenario.
func (s *Scenario) Problem() scheduler.Problem {
	return scheduler.Problem{
		Window:      s.Range,
		Objectives:  s.Objectives,
		Forecasts:   s.Forecasts,
		IdealPlans:  s.IdealPlans,
		Budgets:     s.Budgets,
		Activities:  s.Activities,
		PastPower:   s.PastPower,
		PastService: s.PastService,
		Live:        s.Live,
		Replay:      s.Replay,
	}
}

// Check compares the outcome of a consolidation with the expectations.
func (e Expected) Check(stats model.Statistics, windows int) error {
	if e.Status != "" && stats.Status.String() != e.Status {
		return fmt.Errorf("expected status %s got %s", e.Status, stats.Status)
	}
	if windows < e.MinWindows {
		return fmt.Errorf("expected at least %d windows got %d", e.MinWindows, windows)
	}
	if e.MaxBrownWh != nil && stats.BrownEnergy > *e.MaxBrownWh+1e-9 {
		return fmt.Errorf("brown energy %.3f Wh above %.3f", stats.BrownEnergy, *e.MaxBrownWh)
	}
	return nil
}
