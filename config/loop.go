package config

import (
	"fmt"
	"time"

	sources "github.com/kilianp07/consolidator/connectors/factory"
)

// LoopConfig drives the periodic consolidation.
type LoopConfig struct {
	// IntervalSeconds between two iterations.
	IntervalSeconds int `json:"interval_seconds"`
	// HorizonHours is the planned range length, starting at the next slot.
	HorizonHours int `json:"horizon_hours"`
	// SlotMinutes is the slot length of the planned range.
	SlotMinutes int `json:"slot_minutes"`
	// AckTimeoutSeconds bounds the wait for each EASC acknowledgment.
	AckTimeoutSeconds int `json:"ack_timeout_seconds"`
	// Input selects where the iteration inputs come from.
	Input sources.SourceConfig `json:"input"`
}

// SetDefaults applies sane defaults.
func (c *LoopConfig) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 900
	}
	if c.HorizonHours <= 0 {
		c.HorizonHours = 24
	}
	if c.SlotMinutes <= 0 {
		c.SlotMinutes = 15
	}
	if c.AckTimeoutSeconds <= 0 {
		c.AckTimeoutSeconds = 5
	}
	if c.Input.Type == "" {
		c.Input.Type = sources.IDFile
	}
}

// Validate checks that the horizon is a whole number of slots.
func (c LoopConfig) Validate() error {
	if (time.Duration(c.HorizonHours)*time.Hour)%c.Slot() != 0 {
		return fmt.Errorf("loop: horizon of %dh is not a multiple of %s", c.HorizonHours, c.Slot())
	}
	switch c.Input.Type {
	case sources.IDFile:
		if c.Input.Path == "" {
			return fmt.Errorf("loop: input path is required")
		}
	case sources.IDCollab:
		return c.Input.Collab.Validate()
	default:
		return fmt.Errorf("loop: unknown input %s", c.Input.Type)
	}
	return nil
}

func (c LoopConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c LoopConfig) Slot() time.Duration { return time.Duration(c.SlotMinutes) * time.Minute }

func (c LoopConfig) Horizon() time.Duration { return time.Duration(c.HorizonHours) * time.Hour }

func (c LoopConfig) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutSeconds) * time.Second
}
