// Package metrics defines the sinks consolidation runs are reported to.
// Every sink implements MetricsSink; richer sinks also implement the optional
// recorder interfaces (windows, anytime trace, planned power, fallbacks). The
// factory helpers build sinks from configuration and return a MultiSink when
// several are configured.
package metrics
