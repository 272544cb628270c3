package connectors

import (
	"context"

	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/scheduler"
)

// ErrIncompatibleOption is the format of the error returned when an option
// is applied to a source it does not belong to.
const ErrIncompatibleOption = "option %s is not compatible with connector %s"

// Source provides the inputs of one control-loop iteration over r.
type Source interface {
	Fetch(ctx context.Context, r model.TimeRange) (scheduler.Problem, error)
}

// Option configures a Source.
type Option func(Source) error
