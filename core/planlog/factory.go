package planlog

import (
	"fmt"

	"github.com/kilianp07/consolidator/core/factory"
)

// Stores holds the available plan log backends: "memory", "jsonl",
// "rotating" and "sqlite".
var Stores = factory.NewRegistry[Store]()

type fileConf struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func decodeFile(conf map[string]any) (fileConf, error) {
	c := fileConf{MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 30}
	if err := factory.Decode(conf, &c); err != nil {
		return c, err
	}
	if c.Path == "" {
		return c, fmt.Errorf("path is required")
	}
	return c, nil
}

func init() {
	_ = Stores.Register("memory", func(map[string]any) (Store, error) { return NewMemoryStore(), nil })
	_ = Stores.Register("jsonl", func(conf map[string]any) (Store, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
	_ = Stores.Register("rotating", func(conf map[string]any) (Store, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	_ = Stores.Register("sqlite", func(conf map[string]any) (Store, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
}

// Open creates the store described by cfg, defaulting to "memory".
func Open(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	s, err := Stores.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("plan log: %w", err)
	}
	return s, nil
}
