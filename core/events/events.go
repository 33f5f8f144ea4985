package events

import (
	"time"

	"github.com/openfleet/avltracker/core/model"
)

// ReportEvent is published for each AVL report applied to a vehicle state.
type ReportEvent struct {
	VehicleID   string
	Time        time.Time
	Predictable bool
	MatchFailed bool
}

// SnapshotEvent is published after a snapshot has been encoded and handed to
// the publisher.
type SnapshotEvent struct {
	VehicleID string
	Bytes     int
}

// UnpredictableEvent is published when a vehicle loses its assignment, with
// the method that ended it.
type UnpredictableEvent struct {
	VehicleID string
	Method    model.AssignmentMethod
}
