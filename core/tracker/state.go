package tracker

import (
	"time"

	"github.com/openfleet/avltracker/core/model"
)

// Arrival is an arrival event that cannot be persisted yet because its
// departure has not been observed.
type Arrival struct {
	StopID string
	TripID string
	Time   time.Time
}

// VehicleState keeps track of one vehicle's block assignment, where it last
// matched to its assignment, and its recent AVL reports. It is exclusively
// owned and mutated by a single ingestion path per vehicle; callers must
// serialize updates per vehicle id.
type VehicleState struct {
	vehicleID string
	cfg       Config
	clock     Clock

	// Most recent first.
	avlHistory   *History[model.AvlReport]
	matchHistory *History[*model.Match]

	block            *model.Block
	assignmentMethod model.AssignmentMethod
	assignmentID     string
	assignmentTime   time.Time
	predictable      bool

	// Consecutive unsuccessful match attempts while predictable. A couple
	// of bad matches can be ignored before giving up on the assignment.
	badMatches int

	bufferedArrival *Arrival
	lastArrivalTime int64

	// Memory of the last assignment that was cleared, for detecting a
	// vehicle flapping back onto the block it just lost.
	previousBlockBeforeUnassigned *model.Block
	unassignedTime                time.Time

	predictions []model.Prediction

	schedAdherence    model.ScheduleAdherence
	hasSchedAdherence bool
}

// NewVehicleState returns the tracking state for a vehicle, created on its
// first AVL report. A nil clock selects SystemClock.
func NewVehicleState(vehicleID string, cfg Config, clock Clock) *VehicleState {
	cfg.SetDefaults()
	if clock == nil {
		clock = SystemClock
	}
	return &VehicleState{
		vehicleID:    vehicleID,
		cfg:          cfg,
		clock:        clock,
		avlHistory:   NewHistory[model.AvlReport](cfg.AvlHistorySize),
		matchHistory: NewHistory[*model.Match](cfg.MatchHistorySize),
	}
}

// VehicleID returns the vehicle this state tracks.
func (s *VehicleState) VehicleID() string { return s.vehicleID }

// RecordAvlReport stores the report into the history. Callers must supply
// reports in arrival order; no monotonic-time validation happens here.
func (s *VehicleState) RecordAvlReport(report model.AvlReport) {
	s.avlHistory.Push(report)
}

// RecordMatch stores the match into the history. A nil match marks a failed
// attempt: the vehicle becomes unpredictable and any buffered arrival is
// dropped since something peculiar might have happened. The bad match
// counter is reset on every call, match or no match.
func (s *VehicleState) RecordMatch(match *model.Match) {
	s.matchHistory.Push(match)

	if match == nil {
		s.predictable = false
		s.bufferedArrival = nil
	}

	s.badMatches = 0
}

// Match returns the most recent match, or nil if there is none or the last
// attempt failed.
func (s *VehicleState) Match() *model.Match {
	m, ok := s.matchHistory.First()
	if !ok {
		return nil
	}
	return m
}

// PreviousMatch returns the next to last match, or nil. Useful for comparing
// against the latest match, such as for determining crossed stops.
func (s *VehicleState) PreviousMatch() *model.Match {
	m, ok := s.matchHistory.At(1)
	if !ok {
		return nil
	}
	return m
}

// AvlReport returns the most recent AVL report.
func (s *VehicleState) AvlReport() (model.AvlReport, bool) {
	return s.avlHistory.First()
}

// IncrementBadMatches is called by the matching pipeline when a predictable
// vehicle has no valid spatial/temporal match.
func (s *VehicleState) IncrementBadMatches() {
	s.badMatches++
}

// OverBadMatchLimit reports whether the allowed number of bad matches has
// been exceeded and the vehicle should be made unpredictable.
func (s *VehicleState) OverBadMatchLimit() bool {
	return s.badMatches > s.cfg.BadMatchLimit
}

// BadMatches returns the number of sequential bad matches that occurred
// while the vehicle was predictable.
func (s *VehicleState) BadMatches() int { return s.badMatches }

// LastMatchValid reports whether the last AVL report was successfully
// matched to the assignment.
func (s *VehicleState) LastMatchValid() bool { return s.badMatches == 0 }

// PreviousAvlReport scans the history for the most recent report farther
// than minDistanceMeters from the current location. The scan aborts as soon
// as it reaches a report older than the lookback window relative to the
// current report; a stale report disqualifies everything behind it.
func (s *VehicleState) PreviousAvlReport(minDistanceMeters float64) (model.AvlReport, bool) {
	current, ok := s.avlHistory.First()
	if !ok {
		return model.AvlReport{}, false
	}

	for i := 1; i < s.avlHistory.Len(); i++ {
		previous, _ := s.avlHistory.At(i)
		if current.Time.Sub(previous.Time) > s.cfg.PreviousReportLookback {
			return model.AvlReport{}, false
		}
		if previous.Location.Distance(current.Location) > minDistanceMeters {
			return previous, true
		}
	}
	return model.AvlReport{}, false
}

// PreviousAvlReportFromSuccessfulMatch returns the report from the last
// successful match. That is not simply the previous report: bad matches do
// not consume a successful slot, so the report is offset by however many bad
// matches accumulated since.
func (s *VehicleState) PreviousAvlReportFromSuccessfulMatch() (model.AvlReport, bool) {
	return s.avlHistory.At(1 + s.badMatches)
}

// SetAssignment sets the block assignment for the vehicle, which is also how
// predictability is specified. When an existing assignment is cleared the
// previous block and the time of unassignment are remembered so that a quick
// reassignment to the same block can be recognized.
func (s *VehicleState) SetAssignment(newBlock *model.Block, method model.AssignmentMethod, assignmentID string, predictable bool) {
	if s.block != nil && newBlock == nil {
		s.previousBlockBeforeUnassigned = s.block
		s.unassignedTime = s.latestReportTime()
	}

	s.block = newBlock
	s.assignmentMethod = method
	s.assignmentID = assignmentID
	s.predictable = predictable
	s.assignmentTime = s.latestReportTime()
}

// ClearAssignment removes the block assignment and makes the vehicle
// unpredictable. This intentionally diverges from a full reset: the
// assignment id is kept so that PreviousAssignmentProblematic can recognize
// the feed re-offering the assignment that was just grabbed or terminated.
// Zeroing the id here would make every re-offer look like a new assignment
// and defeat the grace window.
func (s *VehicleState) ClearAssignment(method model.AssignmentMethod) {
	s.SetAssignment(nil, method, s.assignmentID, false)
}

// NewlyReassignedToSameBlock reports whether the vehicle just became
// predictable again on the block it was recently unassigned from. In that
// situation history-dependent events such as arrivals back to the start of
// the block were probably already generated and should not be recomputed.
func (s *VehicleState) NewlyReassignedToSameBlock() bool {
	if s.PreviousMatch() != nil || s.Match() == nil {
		return false
	}
	if s.block == nil || s.previousBlockBeforeUnassigned == nil {
		return false
	}
	if s.block.ID != s.previousBlockBeforeUnassigned.ID {
		return false
	}
	return s.latestReportTime().Before(s.unassignedTime.Add(s.cfg.ReassignmentGrace))
}

// HasConflictingAssignment reports whether the AVL report carries a
// different assignment than the one currently stored.
func (s *VehicleState) HasConflictingAssignment(report model.AvlReport) bool {
	return report.AssignmentID != s.assignmentID
}

// PreviousAssignmentProblematic reports whether the report re-offers an
// assignment that was recently taken away for a structural reason, such as
// an exclusive block grabbed by another vehicle. Such an assignment must not
// be silently re-accepted even though the feed keeps proposing it.
func (s *VehicleState) PreviousAssignmentProblematic(report model.AvlReport) bool {
	if !s.assignmentMethod.Problematic() {
		return false
	}
	if s.HasConflictingAssignment(report) {
		return false
	}
	return report.Time.Sub(s.unassignedTime) < s.cfg.ProblematicAssignmentGrace
}

// Block returns the current block assignment, or nil when unassigned.
func (s *VehicleState) Block() *model.Block { return s.block }

// AssignmentID returns the block id, trip id or trip short name the vehicle
// was assigned with, depending on the feed. Empty when unassigned.
func (s *VehicleState) AssignmentID() string { return s.assignmentID }

// AssignmentMethod returns how the vehicle acquired its assignment.
func (s *VehicleState) AssignmentMethod() model.AssignmentMethod { return s.assignmentMethod }

// AssignmentTime returns the timestamp of the AVL report that was current
// when the assignment was set.
func (s *VehicleState) AssignmentTime() time.Time { return s.assignmentTime }

// Predictable reports whether the vehicle currently has a valid match and
// can support derived predictions.
func (s *VehicleState) Predictable() bool { return s.predictable }

// SchedBasedPreds reports whether the vehicle is not real but was created to
// produce schedule-based predictions.
func (s *VehicleState) SchedBasedPreds() bool {
	report, ok := s.AvlReport()
	return ok && report.SchedBasedPreds
}

// Trip returns the trip of the current match, or nil.
func (s *VehicleState) Trip() *model.Trip {
	if m := s.Match(); m != nil {
		return m.Trip
	}
	return nil
}

// RouteID returns the route of the current trip, or empty when unassigned.
func (s *VehicleState) RouteID() string {
	if t := s.Trip(); t != nil {
		return t.RouteID
	}
	return ""
}

// RouteShortName returns the short name of the current route, or empty.
// Route ids are not always stable across schedule changes but short names
// usually are.
func (s *VehicleState) RouteShortName() string {
	if t := s.Trip(); t != nil {
		return t.RouteShortName
	}
	return ""
}

// AtLayover reports whether the latest match put the vehicle at a layover
// stop, where it may leave the path while the driver takes a break.
func (s *VehicleState) AtLayover() bool {
	m := s.Match()
	return m != nil && m.Layover
}

// SetBufferedArrival records an arrival that cannot be persisted until its
// departure is observed, so that departures always follow arrivals.
func (s *VehicleState) SetBufferedArrival(arrival *Arrival) {
	s.bufferedArrival = arrival
}

// BufferedArrival returns the pending arrival, or nil.
func (s *VehicleState) BufferedArrival() *Arrival { return s.bufferedArrival }

// SetLastArrivalTime stores the last arrival time in epoch milliseconds.
func (s *VehicleState) SetLastArrivalTime(t int64) { s.lastArrivalTime = t }

// LastArrivalTime returns the last stored arrival time.
func (s *VehicleState) LastArrivalTime() int64 { return s.lastArrivalTime }

// SetPredictions replaces the cached prediction list for the vehicle.
func (s *VehicleState) SetPredictions(predictions []model.Prediction) {
	s.predictions = predictions
}

// Predictions returns the most recently computed predictions. Can be nil.
func (s *VehicleState) Predictions() []model.Prediction { return s.predictions }

// SetScheduleAdherence stores the latest real-time schedule adherence.
func (s *VehicleState) SetScheduleAdherence(adherence model.ScheduleAdherence) {
	s.schedAdherence = adherence
	s.hasSchedAdherence = true
}

// ScheduleAdherence returns the current schedule adherence. The second
// return is false when the vehicle is not predictable, since adherence is
// only meaningful against a live assignment.
func (s *VehicleState) ScheduleAdherence() (model.ScheduleAdherence, bool) {
	if !s.predictable || !s.hasSchedAdherence {
		return model.ScheduleAdherence{}, false
	}
	return s.schedAdherence, true
}

func (s *VehicleState) latestReportTime() time.Time {
	report, ok := s.AvlReport()
	if !ok {
		return time.Time{}
	}
	return report.Time
}
