// Package plugins lists the modules that can be selected by configuration.
// Importing it registers the built-in metrics sinks.
package plugins

import (
	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/planlog"
	"github.com/kilianp07/consolidator/core/scheduler"
	"github.com/kilianp07/consolidator/core/splitter"
	_ "github.com/kilianp07/consolidator/infra/metrics"
)

// Kinds of pluggable modules, as named in the configuration.
const (
	KindReducer = "reducer"
	KindEngine  = "engine"
	KindMetrics = "metrics"
	KindPlanLog = "plan_log"
)

// Catalog returns the registered module types of every kind.
func Catalog() map[string][]string {
	return map[string][]string{
		KindReducer: splitter.Reducers.Names(),
		KindEngine:  scheduler.Engines.Names(),
		KindMetrics: coremetrics.SinkTypes(),
		KindPlanLog: planlog.Stores.Names(),
	}
}
