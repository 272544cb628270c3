// Package scenarios replays consolidation scenarios through the control loop
// with scripted gateway and EASC failures.
package scenarios

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/consolidator/core/scenario"
)

// Expected holds the outcome of a case over all its iterations.
type Expected struct {
	// Published counts the plans acknowledged by EASCs.
	Published int `yaml:"published"`
	Fallbacks int `yaml:"fallbacks"`
}

// Case runs a scenario file for a number of control-loop iterations.
type Case struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Scenario is the path of the scenario file, relative to the case file.
	Scenario   string `yaml:"scenario"`
	Iterations int    `yaml:"iterations"`
	// FailFetchFrom makes the input source fail from this iteration on,
	// counting from 1. Zero never fails.
	FailFetchFrom int      `yaml:"fail_fetch_from,omitempty"`
	FailEascs     []string `yaml:"fail_eascs,omitempty"`
	Expected      Expected `yaml:"expected"`

	problem *scenario.Scenario
	path    string
}

// Load reads a case file and the scenario it refers to.
func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Scenario == "" {
		return nil, fmt.Errorf("case %s: scenario is required", path)
	}
	if c.Iterations <= 0 {
		c.Iterations = 1
	}
	c.path = filepath.Join(filepath.Dir(path), c.Scenario)
	if c.problem, err = scenario.Load(c.path); err != nil {
		return nil, fmt.Errorf("case %s: %w", path, err)
	}
	return &c, nil
}
