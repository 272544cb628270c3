package consolidator

import (
	"fmt"
	"runtime"

	"github.com/kilianp07/consolidator/core/factory"
	"github.com/kilianp07/consolidator/core/scheduler"
)

// Config holds the consolidation settings. The scheduler options apply
// uniformly to every window.
type Config struct {
	scheduler.Config `json:",squash" yaml:",inline"`
	// Reducer selects how candidate cut points are filtered. Defaults to
	// "pass".
	Reducer factory.ModuleConfig `json:"reducer" yaml:"reducer"`
	// Engine selects the search engine. Defaults to "bnb".
	Engine factory.ModuleConfig `json:"engine" yaml:"engine"`
	// Workers caps the number of windows solved concurrently.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	c := Config{Config: scheduler.DefaultConfig()}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	c.Config.SetDefaults()
	if c.Reducer.Type == "" {
		c.Reducer.Type = "pass"
	}
	if c.Engine.Type == "" {
		c.Engine.Type = "bnb"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}
