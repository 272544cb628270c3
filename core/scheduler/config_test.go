package scheduler

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDecodeConfigYAML(t *testing.T) {
	data := "timeout_seconds: 2.5\noptimize: false\nobjective: profit\nweights:\n  brown: 2\n"
	cfg, err := DecodeConfig(bytes.NewBufferString(data), "yaml")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Timeout() != 2500*time.Millisecond || cfg.Optimize || cfg.Objective != ObjectiveProfit {
		t.Fatalf("bad cfg %#v", cfg)
	}
	if cfg.Weights.Brown != 2 {
		t.Fatalf("bad weights %#v", cfg.Weights)
	}
	if !cfg.IdealHeuristic {
		t.Fatalf("absent fields must keep their default")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	if err := os.WriteFile(path, []byte(`{"timeout_seconds":5,"ipp_heuristic":false}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Timeout() != 5*time.Second || cfg.IdealHeuristic || !cfg.Optimize {
		t.Fatalf("bad cfg %#v", cfg)
	}
	if cfg.Weights != DefaultConfig().Weights {
		t.Fatalf("expected default weights got %#v", cfg.Weights)
	}
	if _, err := LoadConfig(path + ".txt"); err == nil {
		t.Fatalf("expected error for wrong ext")
	}
}

func TestLoadConfigYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := os.WriteFile(path, []byte("max_nodes: 1000\nrelaxation_limit: -1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxNodes != 1000 || cfg.RelaxationLimit != -1 || cfg.Timeout() != 0 {
		t.Fatalf("bad cfg %#v", cfg)
	}
}

func TestDecodeConfigErrors(t *testing.T) {
	if _, err := DecodeConfig(bytes.NewBufferString("{}"), "toml"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := DecodeConfig(bytes.NewBufferString(":"), "yaml"); err == nil {
		t.Fatalf("expected yaml error")
	}
	if _, err := DecodeConfig(bytes.NewBufferString(`{"objective":"cheap"}`), "json"); err == nil {
		t.Fatalf("expected objective error")
	}
	if _, err := DecodeConfig(bytes.NewBufferString(`{"weights":{"brown":-1}}`), "json"); err == nil {
		t.Fatalf("expected weight error")
	}
}
