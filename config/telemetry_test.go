package config

import "testing"

func TestTelemetryConfigDefaults(t *testing.T) {
	cfg := TelemetryConfig{}
	if cfg.Interval() != 10 {
		t.Fatalf("expected default interval 10, got %d", cfg.Interval())
	}
	if cfg.Timeout() != 3 {
		t.Fatalf("expected default timeout 3, got %d", cfg.Timeout())
	}
	if cfg.MaxAge() != 300 {
		t.Fatalf("expected default max age 300, got %d", cfg.MaxAge())
	}
	if cfg.MetricsTopic() != "easc/+/metrics" {
		t.Fatalf("unexpected metrics topic %s", cfg.MetricsTopic())
	}
	req, resp := cfg.PollTopics()
	if req != "telemetry/request" || resp != "telemetry/response/+" {
		t.Fatalf("unexpected poll topics %s %s", req, resp)
	}
}

func TestTelemetryConfigValues(t *testing.T) {
	cfg := TelemetryConfig{IntervalSeconds: 5, TimeoutSeconds: 2, StatePrefix: "site/", ResponsePrefix: "site/resp/"}
	if cfg.Interval() != 5 {
		t.Fatalf("expected interval 5, got %d", cfg.Interval())
	}
	if cfg.Timeout() != 2 {
		t.Fatalf("expected timeout 2, got %d", cfg.Timeout())
	}
	if cfg.MetricsTopic() != "site/+/metrics" {
		t.Fatalf("unexpected metrics topic %s", cfg.MetricsTopic())
	}
	if _, resp := cfg.PollTopics(); resp != "site/resp/+" {
		t.Fatalf("unexpected response topic %s", resp)
	}
}
