// Package events defines the consolidation events emitted on the event bus.
//
// Available event types:
//   - IncumbentEvent: a window found a better solution
//   - WindowSolvedEvent: a window finished solving
//   - ConsolidationEvent: a consolidation finished, successfully or not
//   - FallbackEvent: the service reused the previous plan
package events
