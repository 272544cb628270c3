// Package splitter decomposes a planning range into windows that can be
// solved independently and builds one scheduler per window.
//
// Candidate cut points are the instants where an input changes: forecast
// segments, budget ceilings and quotas, SLO windows, objective frames, ideal
// plan bounds and the completion of activities other activities depend on.
// Cuts are never placed inside a coupling interval (an energy quota, a
// cumulative SLO, an energy objective occurrence or a precedence region) since
// the per-window schedulers could not honour those constraints jointly. A
// Reducer then selects which of the remaining candidates to keep.
package splitter
