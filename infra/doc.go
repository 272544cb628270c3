// Package infra holds the adapters behind the core interfaces: the zerolog
// logger, the Paho plan publisher and telemetry collector, the Prometheus and
// InfluxDB metrics sinks, the Sentry monitor and the SQLite KPI store.
// Nothing in core imports these packages.
package infra
