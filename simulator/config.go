package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker string
	// Scenario takes the EASCs and their activities from a scenario file
	// instead of generating them.
	Scenario    string
	Eascs       int
	Activities  int
	DataCenters int
	AckLatency  time.Duration
	DropRate    float64
	RejectRate  float64
	Interval    time.Duration
	// TopicPrefix is the root of the plan, ack and metrics topics.
	TopicPrefix    string
	RequestTopic   string
	ResponsePrefix string
	ProfileFile    string
	Verbose        bool

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.Scenario == "" && (c.Eascs <= 0 || c.Activities <= 0 || c.DataCenters <= 0) {
		return fmt.Errorf("a generated fleet needs positive sizes")
	}
	for name, r := range map[string]float64{"drop-rate": c.DropRate, "reject-rate": c.RejectRate} {
		if r < 0 || r > 1 {
			return fmt.Errorf("%s must be in [0,1]", name)
		}
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}
