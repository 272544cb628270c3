// Package scheduler solves one time window of a consolidation run. It assigns
// a working mode and performance level to every activity, data center and slot
// under hard power and energy budgets, minimising brown energy or maximising
// SLO revenue, and reports an anytime trace of improving solutions.
package scheduler
