package merger

import (
	"errors"
	"fmt"
)

// ErrMergeInconsistency is matched by every *MergeError.
var ErrMergeInconsistency = errors.New("merge inconsistency")

// MergeError reports a window whose structure differs from the first window.
type MergeError struct {
	Easc       string
	Activity   string
	DataCenter string
	Reason     string
}

func (e *MergeError) Error() string {
	where := e.Easc
	if e.Activity != "" {
		where += "/" + e.Activity
	}
	if e.DataCenter != "" {
		where += "/" + e.DataCenter
	}
	if where == "" {
		return fmt.Sprintf("merge: %s", e.Reason)
	}
	return fmt.Sprintf("merge %s: %s", where, e.Reason)
}

func (e *MergeError) Unwrap() error { return ErrMergeInconsistency }
