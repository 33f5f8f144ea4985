// Package events defines the tracking related events emitted on the event bus.
//
// Available event types:
//   - ReportEvent: an AVL report was applied to a vehicle's state
//   - SnapshotEvent: a snapshot was encoded and published
//   - UnpredictableEvent: a vehicle lost its assignment
package events
