// Package snapshot provides the immutable, versioned view of a vehicle's
// tracked state that is published to external consumers. A Snapshot is built
// once from a quiescent VehicleState and never mutated; fields are unexported
// so the only ways to materialize one are Build and the versioned codec.
package snapshot

import (
	"github.com/openfleet/avltracker/core/model"
	"github.com/openfleet/avltracker/core/tracker"
)

// Avl is the telemetry sub-record carried inside a Snapshot.
type Avl struct {
	VehicleID string
	// Time is the report epoch time in milliseconds.
	Time         int64
	Lat          float32
	Lon          float32
	Heading      float32
	Speed        float32
	AssignmentID string
}

// Snapshot is a point-in-time view of one vehicle. Safe for concurrent reads.
type Snapshot struct {
	blockID          string
	assignmentMethod model.AssignmentMethod
	avl              Avl
	heading          model.Heading
	routeID          string
	routeShortName   string
	tripID           string
	tripPatternID    string
	directionID      string
	headsign         string
	predictable      bool
	schedBasedPred   bool
	schedAdherence   model.ScheduleAdherence
	hasAdherence     bool
	isLayover        bool
	// layoverDepartureTime is the predicted departure epoch millis while at
	// a layover, 0 when not at a layover or no prediction is cached.
	layoverDepartureTime int64
	nextStopID           string
	vehicleType          string
}

// Build assembles a Snapshot from the vehicle's current state and the
// prediction cache. It must run on the same serialized path that mutates the
// state, or against a state known to be quiescent.
func Build(state *tracker.VehicleState, predictions model.PredictionLookup) Snapshot {
	s := Snapshot{
		assignmentMethod: state.AssignmentMethod(),
		heading:          state.ResolveHeading(),
		routeID:          state.RouteID(),
		routeShortName:   state.RouteShortName(),
		predictable:      state.Predictable(),
		schedBasedPred:   state.SchedBasedPreds(),
	}

	if report, ok := state.AvlReport(); ok {
		s.avl = Avl{
			VehicleID:    report.VehicleID,
			Time:         report.Time.UnixMilli(),
			Lat:          float32(report.Location.Lat),
			Lon:          float32(report.Location.Lon),
			Heading:      headingWire(report.Heading),
			Speed:        report.Speed,
			AssignmentID: report.AssignmentID,
		}
	}

	if block := state.Block(); block != nil {
		s.blockID = block.ID
	}

	if trip := state.Trip(); trip != nil {
		s.tripID = trip.ID
		s.tripPatternID = trip.PatternID
		s.directionID = trip.DirectionID
		s.headsign = trip.Headsign
		s.vehicleType = trip.VehicleType

		// A match just past a stop boundary refers to the path being
		// entered; shift it back so stop id and layover state describe
		// the stop about to be served.
		match := state.Match().BeforeStopIfAtStop()
		s.isLayover = match.Layover
		if s.isLayover && predictions != nil {
			// The layover departure is not the scheduled trip start:
			// a late vehicle or a driver break pushes it out, so the
			// predicted departure is used when one is cached.
			if t, ok := predictions.PredictionForVehicle(
				s.avl.VehicleID, s.routeShortName, match.StopPath().StopID); ok {
				s.layoverDepartureTime = t
			}
		}
		if stopPath := match.StopPath(); stopPath != nil {
			s.nextStopID = stopPath.StopID
		}
	}

	if adherence, ok := state.ScheduleAdherence(); ok {
		s.schedAdherence = adherence
		s.hasAdherence = true
	}

	return s
}

// VehicleID returns the id of the vehicle the snapshot describes.
func (s Snapshot) VehicleID() string { return s.avl.VehicleID }

// BlockID returns the assigned block id, or empty when unassigned.
func (s Snapshot) BlockID() string { return s.blockID }

// AssignmentMethod returns how the vehicle acquired its assignment.
func (s Snapshot) AssignmentMethod() model.AssignmentMethod { return s.assignmentMethod }

// Avl returns the telemetry sub-record the snapshot was built from.
func (s Snapshot) Avl() Avl { return s.avl }

// Heading returns the resolved display heading, which may be undefined.
func (s Snapshot) Heading() model.Heading { return s.heading }

// RouteID returns the route id, or empty when unassigned.
func (s Snapshot) RouteID() string { return s.routeID }

// RouteShortName returns the route short name, or empty when unassigned.
func (s Snapshot) RouteShortName() string { return s.routeShortName }

// TripID returns the trip id, or empty when unassigned.
func (s Snapshot) TripID() string { return s.tripID }

// TripPatternID returns the trip pattern id, or empty when unassigned.
func (s Snapshot) TripPatternID() string { return s.tripPatternID }

// DirectionID returns the direction id, or empty when unassigned.
func (s Snapshot) DirectionID() string { return s.directionID }

// Headsign returns the trip headsign, or empty when unassigned.
func (s Snapshot) Headsign() string { return s.headsign }

// Predictable reports whether the vehicle had a valid match.
func (s Snapshot) Predictable() bool { return s.predictable }

// SchedBasedPred reports whether the vehicle exists only to generate
// schedule-based predictions.
func (s Snapshot) SchedBasedPred() bool { return s.schedBasedPred }

// ScheduleAdherence returns the adherence value; the second return is false
// when the vehicle was not predictable at build time.
func (s Snapshot) ScheduleAdherence() (model.ScheduleAdherence, bool) {
	return s.schedAdherence, s.hasAdherence
}

// IsLayover reports whether the vehicle is at a layover stop.
func (s Snapshot) IsLayover() bool { return s.isLayover }

// LayoverDepartureTime returns the predicted layover departure in epoch
// milliseconds, or 0.
func (s Snapshot) LayoverDepartureTime() int64 { return s.layoverDepartureTime }

// NextStopID returns the stop about to be served, which is the current stop
// when the vehicle is sitting at one. Empty when unassigned.
func (s Snapshot) NextStopID() string { return s.nextStopID }

// VehicleType returns the route's vehicle type, or empty when unassigned.
func (s Snapshot) VehicleType() string { return s.vehicleType }
