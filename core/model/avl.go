package model

import "time"

// Heading is an optional compass heading. AVL feeds frequently omit heading,
// so absence is modelled explicitly instead of leaning on NaN comparisons.
type Heading struct {
	Degrees float32
	Valid   bool
}

// HeadingOf returns a defined Heading.
func HeadingOf(degrees float32) Heading {
	return Heading{Degrees: degrees, Valid: true}
}

// AvlReport is a single vehicle location update from the AVL feed.
type AvlReport struct {
	VehicleID string    `json:"vehicle_id"`
	Time      time.Time `json:"time"`
	Location  Location  `json:"location"`
	Heading   Heading   `json:"-"`
	Speed     float32   `json:"speed"`
	// AssignmentID is the block, trip or trip short name the feed assigned
	// the vehicle to. Empty when the feed carries no assignment.
	AssignmentID string `json:"assignment_id"`
	// SchedBasedPreds marks a synthetic report created to generate
	// schedule-based predictions rather than one from a real vehicle.
	SchedBasedPreds bool `json:"sched_based_preds"`
}

// HasAssignment reports whether the feed supplied an assignment id.
func (r AvlReport) HasAssignment() bool {
	return r.AssignmentID != ""
}
