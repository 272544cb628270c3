// Package consolidator is the entry point of the option consolidation: it
// splits the planning range into windows, solves them concurrently on a
// bounded pool of workers and merges their plans and anytime traces.
//
// BuildPlans fails with a *ConsolidationError on any internal failure. The
// original cause stays reachable with errors.Is and errors.As, in particular
// ErrConfigMismatch for inconsistent inputs and ErrMergeInconsistency when
// window results cannot be stitched. Infeasible and timed out windows are not
// errors: they are reported by the status of the merged statistics.
package consolidator
