package config

import (
	"fmt"

	"github.com/kilianp07/consolidator/core/factory"
)

// PlanLogConfig defines settings for the consolidation run log and its
// rotation.
type PlanLogConfig struct {
	// Backend selects the log store type: "jsonl", "rotating", "sqlite" or
	// "memory".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *PlanLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "memory" {
		c.Path = "consolidation.log"
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks mandatory fields.
func (c PlanLogConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "rotating", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("plan_log: path is required")
		}
	case "memory":
	default:
		return fmt.Errorf("plan_log: unknown backend %s", c.Backend)
	}
	return nil
}

// Module returns the store module configuration understood by planlog.Open.
func (c PlanLogConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Backend, Conf: map[string]any{
		"path":         c.Path,
		"max_size_mb":  c.MaxSizeMB,
		"max_backups":  c.MaxBackups,
		"max_age_days": c.MaxAgeDays,
	}}
}
