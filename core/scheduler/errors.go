package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigMismatch marks inputs that cannot be combined, such as
	// forecasts disagreeing on slot duration, count or origin. Retrying
	// without fixing the inputs cannot succeed.
	ErrConfigMismatch = errors.New("configuration mismatch")
	// ErrInvalidProblem is returned for malformed activities, budgets or
	// replay sequences.
	ErrInvalidProblem = errors.New("invalid problem")
)

// ConfigMismatchError identifies the input source that disagrees with the
// others.
type ConfigMismatchError struct {
	Source string
	Err    error
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("configuration mismatch on %s: %v", e.Source, e.Err)
}

func (e *ConfigMismatchError) Unwrap() []error { return []error{ErrConfigMismatch, e.Err} }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidProblem, fmt.Sprintf(format, args...))
}
