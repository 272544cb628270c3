package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ObjectiveMode selects what the scheduler optimises.
type ObjectiveMode string

const (
	// ObjectiveBrown minimises non-renewable energy.
	ObjectiveBrown ObjectiveMode = "brown"
	// ObjectiveProfit maximises the SLO price earned.
	ObjectiveProfit ObjectiveMode = "profit"
)

// Weights scales the terms of the cost function.
type Weights struct {
	Brown     float64 `json:"brown" yaml:"brown"`
	SLO       float64 `json:"slo" yaml:"slo"`
	Objective float64 `json:"objective" yaml:"objective"`
	Ideal     float64 `json:"ideal" yaml:"ideal"`
	Switch    float64 `json:"switch" yaml:"switch"`
}

// Config defines solving parameters loaded from configuration.
type Config struct {
	// TimeoutSeconds bounds the search; zero or less means unbounded.
	TimeoutSeconds float64 `json:"timeout_seconds" yaml:"timeout_seconds"`
	// Optimize keeps searching after the first feasible solution.
	Optimize bool `json:"optimize" yaml:"optimize"`
	// IdealHeuristic biases the search toward the ideal power plan.
	IdealHeuristic bool          `json:"ipp_heuristic" yaml:"ipp_heuristic"`
	Objective      ObjectiveMode `json:"objective" yaml:"objective"`
	Weights        Weights       `json:"weights" yaml:"weights"`
	// MaxNodes stops the search after that many nodes; zero is unbounded.
	MaxNodes int64 `json:"max_nodes" yaml:"max_nodes"`
	// RelaxationLimit is the largest number of LP variables for which the
	// relaxation bound is computed. Negative disables it.
	RelaxationLimit int `json:"relaxation_limit" yaml:"relaxation_limit"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	c := Config{Optimize: true, IdealHeuristic: true}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Objective == "" {
		c.Objective = ObjectiveBrown
	}
	if c.Weights == (Weights{}) {
		c.Weights = Weights{Brown: 1, SLO: 10, Objective: 1, Ideal: 0.1, Switch: 0.01}
	}
	if c.RelaxationLimit == 0 {
		c.RelaxationLimit = 300
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.Objective != ObjectiveBrown && c.Objective != ObjectiveProfit {
		return fmt.Errorf("unknown objective %q", c.Objective)
	}
	w := c.Weights
	if w.Brown < 0 || w.SLO < 0 || w.Objective < 0 || w.Ideal < 0 || w.Switch < 0 {
		return fmt.Errorf("weights must not be negative")
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must not be negative")
	}
	return nil
}

// Timeout returns the search time limit, zero meaning unbounded.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// LoadConfig loads a Config from a JSON or YAML file. Absent fields keep
// their default values.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	cfg := DefaultConfig()
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err != nil {
		return Config{}, err
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}

// DecodeConfig reads from r to decode a Config.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(r)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		dec := json.NewDecoder(r)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported format: %s", format)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}
