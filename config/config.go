package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/consolidator/core/consolidator"
	"github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/infra/mqtt"
)

type Config struct {
	Consolidator consolidator.Config `json:"consolidator"`
	Loop         LoopConfig          `json:"loop"`
	PlanLog      PlanLogConfig       `json:"plan_log"`
	KPI          KPIConfig           `json:"kpi"`
	Metrics      metrics.Config      `json:"metrics"`
	MQTT         mqtt.Config         `json:"mqtt"`
	Telemetry    TelemetryConfig     `json:"telemetry"`
	API          APIConfig           `json:"api"`
	Sentry       SentryConfig        `json:"sentry"`
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Consolidator.SetDefaults()
	c.Loop.SetDefaults()
	c.PlanLog.SetDefaults()
	c.KPI.SetDefaults()
	c.Metrics.SetDefaults()
	c.MQTT.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Consolidator.Validate(); err != nil {
		return fmt.Errorf("consolidator: %w", err)
	}
	if err := c.Loop.Validate(); err != nil {
		return err
	}
	if err := c.PlanLog.Validate(); err != nil {
		return err
	}
	if c.KPI.Backend != "memory" && c.KPI.Backend != "sqlite" {
		return fmt.Errorf("kpi: unknown backend %s", c.KPI.Backend)
	}
	if c.Telemetry.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("telemetry requires an mqtt broker")
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	// Unset consolidator keys keep the same values as a run without a config file.
	cfg := Config{Consolidator: consolidator.DefaultConfig()}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
