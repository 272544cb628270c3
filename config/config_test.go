package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kilianp07/consolidator/core/consolidator"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `consolidator:
  timeout_seconds: 30
  optimize: true
  ipp_heuristic: true
  workers: 2
  reducer:
    type: "max_windows"
    conf:
      n: 4
  weights:
    brown: 2
loop:
  interval_seconds: 600
  horizon_hours: 12
  slot_minutes: 30
  input:
    type: "collab"
    collab:
      base_url: "http://gateway"
      auth:
        client_id: "cli"
        client_secret: "secret"
        auth_url: "http://gateway/token"
plan_log:
  backend: "rotating"
  path: "runs.log"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  ack_topic: "easc/+/ack"
  use_tls: false
telemetry:
  enabled: true
  eascs: ["easc1", "easc2"]
metrics:
  sinks:
    - type: "nop"
api:
  addr: ":8081"
  token: "secret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"timeout_seconds", cfg.Consolidator.TimeoutSeconds, 30.0},
		{"optimize", cfg.Consolidator.Optimize, true},
		{"ipp_heuristic", cfg.Consolidator.IdealHeuristic, true},
		{"workers", cfg.Consolidator.Workers, 2},
		{"reducer", cfg.Consolidator.Reducer.Type, "max_windows"},
		{"engine default", cfg.Consolidator.Engine.Type, "bnb"},
		{"weights.brown", cfg.Consolidator.Weights.Brown, 2.0},
		{"interval", cfg.Loop.IntervalSeconds, 600},
		{"slot", cfg.Loop.SlotMinutes, 30},
		{"input", cfg.Loop.Input.Type, "collab"},
		{"collab.base_url", cfg.Loop.Input.Collab.BaseURL, "http://gateway"},
		{"collab.client_id", cfg.Loop.Input.Collab.Auth.ClientID, "cli"},
		{"plan_log.backend", cfg.PlanLog.Backend, "rotating"},
		{"plan_log.max_backups", cfg.PlanLog.MaxBackups, 5},
		{"kpi default", cfg.KPI.Backend, "memory"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"ack_topic", cfg.MQTT.AckTopic, "easc/+/ack"},
		{"telemetry eascs", len(cfg.Telemetry.Eascs), 2},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"emission factor default", cfg.Metrics.EmissionFactor, 0.4},
		{"api.addr", cfg.API.Addr, ":8081"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"loop":{"input":{"type":"file","path":"scenario.yaml"}},"api":{"token":"a"}}`)
	t.Setenv("K_API__TOKEN", "b")
	t.Setenv("K_LOOP__HORIZON_HOURS", "12")
	t.Setenv("K_CONSOLIDATOR__OPTIMIZE", "false")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.API.Token != "b" {
		t.Fatalf("env override not applied: %s", cfg.API.Token)
	}
	if cfg.Loop.HorizonHours != 12 {
		t.Fatalf("nested env override not applied: %d", cfg.Loop.HorizonHours)
	}
	if cfg.Consolidator.Optimize {
		t.Fatal("env override of a defaulted bool not applied")
	}
	if cfg.PlanLog.Path != "consolidation.log" {
		t.Fatalf("plan log default not applied: %s", cfg.PlanLog.Path)
	}
}

func TestLoadConsolidatorDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{"loop":{"input":{"type":"file","path":"scenario.yaml"}}}`))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	def := consolidator.DefaultConfig()
	if cfg.Consolidator.Optimize != def.Optimize || cfg.Consolidator.IdealHeuristic != def.IdealHeuristic {
		t.Fatalf("file without consolidator section differs from defaults: %+v", cfg.Consolidator.Config)
	}

	cfg, err = Load(writeConfig(t, "config.yaml", "consolidator:\n  optimize: false\nloop:\n  input:\n    path: scenario.yaml\n"))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Consolidator.Optimize || !cfg.Consolidator.IdealHeuristic {
		t.Fatalf("explicit optimize=false lost or ipp default dropped: %+v", cfg.Consolidator.Config)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"format":    "",
		"horizon":   `{"loop":{"horizon_hours":1,"slot_minutes":25,"input":{"path":"s.yaml"}}}`,
		"telemetry": `{"loop":{"input":{"path":"s.yaml"}},"telemetry":{"enabled":true}}`,
		"plan_log":  `{"loop":{"input":{"path":"s.yaml"}},"plan_log":{"backend":"csv"}}`,
		"input":     `{"loop":{"input":{"type":"collab"}}}`,
	}
	for name, data := range cases {
		file := "config.json"
		if name == "format" {
			file = "config.toml"
		}
		if _, err := Load(writeConfig(t, file, data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
