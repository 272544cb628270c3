package factory

import (
	"fmt"

	"github.com/kilianp07/consolidator/connectors"
	"github.com/kilianp07/consolidator/connectors/clients/collab"
	"github.com/kilianp07/consolidator/connectors/clients/file"
)

const (
	IDFile   = "file"
	IDCollab = "collab"
)

var (
	errUnknownSource = "unknown input source: %s"
)

// SourceConfig selects the input source of the control loop.
type SourceConfig struct {
	Type string `json:"type"`
	// Path and Shift configure the file source.
	Path  string `json:"path"`
	Shift bool   `json:"shift"`
	// Collab configures the gateway source.
	Collab collab.Config `json:"collab"`
}

// NewSource builds the configured input source, "file" by default.
func NewSource(cfg SourceConfig) (connectors.Source, error) {
	switch cfg.Type {
	case IDFile, "":
		var opts []connectors.Option
		if cfg.Shift {
			opts = append(opts, file.WithShift())
		}
		return file.New(cfg.Path, opts...)
	case IDCollab:
		return collab.New(cfg.Collab)
	default:
		return nil, fmt.Errorf(errUnknownSource, cfg.Type)
	}
}
