package scheduler

import (
	"context"
	"fmt"

	"github.com/kilianp07/consolidator/core/factory"
	"github.com/kilianp07/consolidator/core/model"
)

// Result is what an engine returns for one model.
type Result struct {
	Best   Solution
	Cost   float64
	Status model.Status
	Nodes  int64
	// Bound is a proven lower bound of the cost, when known.
	Bound *float64
}

// Engine searches a compiled model. onImprove must be called each time a
// better feasible solution is found, with its cost.
type Engine interface {
	Solve(ctx context.Context, m *Model, onImprove func(cost float64)) (Result, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, m *Model, onImprove func(cost float64)) (Result, error)

// Solve calls f.
func (f EngineFunc) Solve(ctx context.Context, m *Model, onImprove func(cost float64)) (Result, error) {
	return f(ctx, m, onImprove)
}

// Engines holds the available search engines. "bnb" is registered by default.
var Engines = factory.NewRegistry[Engine]()

func init() {
	Engines.MustRegister("bnb", func(conf map[string]any) (Engine, error) {
		var c BranchAndBoundConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewBranchAndBound(c), nil
	})
}

// NewEngine creates the engine described by cfg, defaulting to "bnb".
func NewEngine(cfg factory.ModuleConfig) (Engine, error) {
	if cfg.Type == "" {
		cfg.Type = "bnb"
	}
	e, err := Engines.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}
