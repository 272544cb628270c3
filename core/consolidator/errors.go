package consolidator

import (
	"errors"
	"fmt"

	"github.com/kilianp07/consolidator/core/merger"
	"github.com/kilianp07/consolidator/core/scheduler"
)

var (
	// ErrConsolidation is matched by every *ConsolidationError.
	ErrConsolidation = errors.New("consolidation failed")
	// ErrConfigMismatch marks inputs that cannot be combined.
	ErrConfigMismatch = scheduler.ErrConfigMismatch
	// ErrMergeInconsistency marks windows that do not share the same plan
	// structure.
	ErrMergeInconsistency = merger.ErrMergeInconsistency
)

// ConfigMismatchError names the input source that disagrees with the others.
type ConfigMismatchError = scheduler.ConfigMismatchError

// MergeError describes a window whose structure differs from the first one.
type MergeError = merger.MergeError

// ConsolidationError is returned when a consolidation produced no usable
// plan. Op is the failing step: "split", "solve" or "merge".
type ConsolidationError struct {
	RunID string
	Op    string
	Cause error
}

func (e *ConsolidationError) Error() string {
	return fmt.Sprintf("consolidation %s: %s: %v", e.RunID, e.Op, e.Cause)
}

func (e *ConsolidationError) Unwrap() []error { return []error{ErrConsolidation, e.Cause} }

// Tags identifies the run and step for error reporting.
func (e *ConsolidationError) Tags() map[string]string {
	return map[string]string{"run_id": e.RunID, "op": e.Op, "module": "consolidator"}
}
