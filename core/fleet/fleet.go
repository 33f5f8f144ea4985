// Package fleet runs the ingestion pipeline: it owns one tracking state per
// vehicle, applies AVL reports and match results to it, and publishes the
// resulting snapshots. All updates for a vehicle id run serialized; the
// tracking state itself is never shared between goroutines.
package fleet

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/openfleet/avltracker/core/events"
	"github.com/openfleet/avltracker/core/logger"
	"github.com/openfleet/avltracker/core/metrics"
	"github.com/openfleet/avltracker/core/model"
	"github.com/openfleet/avltracker/core/snapshot"
	"github.com/openfleet/avltracker/core/tracker"
	"github.com/openfleet/avltracker/internal/eventbus"
)

const lockStripes = 64

// Matcher associates an AVL report with a position along the vehicle's
// assigned trip. A nil match means the attempt failed. The algorithm is an
// external collaborator; the pipeline only consumes its result.
type Matcher interface {
	Match(state *tracker.VehicleState, report model.AvlReport) *model.Match
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(state *tracker.VehicleState, report model.AvlReport) *model.Match

func (f MatcherFunc) Match(state *tracker.VehicleState, report model.AvlReport) *model.Match {
	return f(state, report)
}

// BlockResolver resolves the feed's assignment id to a block of the service
// plan. The second return is false when the assignment is unknown.
type BlockResolver interface {
	BlockForAssignment(assignmentID string) (*model.Block, bool)
}

// Publisher transmits an encoded snapshot payload to consumers.
type Publisher interface {
	PublishSnapshot(vehicleID string, payload []byte) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(vehicleID string, payload []byte) error

func (f PublisherFunc) PublishSnapshot(vehicleID string, payload []byte) error {
	return f(vehicleID, payload)
}

// Fleet owns the tracking state for every reporting vehicle.
type Fleet struct {
	cfg         tracker.Config
	clock       tracker.Clock
	matcher     Matcher
	blocks      BlockResolver
	predictions model.PredictionLookup
	publisher   Publisher
	bus         eventbus.EventBus
	sink        metrics.Sink
	log         logger.Logger

	mu     sync.RWMutex
	states map[string]*tracker.VehicleState

	// Per-vehicle serialization. Reports for one vehicle always take the
	// same stripe, so its state never sees concurrent writers.
	stripes [lockStripes]sync.Mutex
}

// New returns a Fleet. Matcher, publisher and logger are required; the
// resolver, prediction lookup, bus and sink may be nil.
func New(cfg tracker.Config, matcher Matcher, blocks BlockResolver, predictions model.PredictionLookup,
	publisher Publisher, bus eventbus.EventBus, sink metrics.Sink, log logger.Logger) (*Fleet, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracker config: %w", err)
	}
	if matcher == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Fleet{
		cfg:         cfg,
		clock:       tracker.SystemClock,
		matcher:     matcher,
		blocks:      blocks,
		predictions: predictions,
		publisher:   publisher,
		bus:         bus,
		sink:        sink,
		log:         log,
		states:      make(map[string]*tracker.VehicleState),
	}, nil
}

// SetClock replaces the time source, for tests.
func (f *Fleet) SetClock(clock tracker.Clock) { f.clock = clock }

// Process applies one AVL report: records it, maintains the assignment,
// attempts a match, and publishes the resulting snapshot. Reports for the
// same vehicle are serialized; different vehicles proceed in parallel.
func (f *Fleet) Process(report model.AvlReport) error {
	if report.VehicleID == "" {
		return fmt.Errorf("avl report without vehicle id")
	}

	stripe := &f.stripes[stripeFor(report.VehicleID)]
	stripe.Lock()
	defer stripe.Unlock()

	state := f.state(report.VehicleID)
	state.RecordAvlReport(report)

	madeUnpredictable := f.applyAssignment(state, report)
	matchFailed, terminated := f.applyMatch(state, report)

	f.publishMetrics(state, report, matchFailed, madeUnpredictable || terminated)

	return f.publish(state)
}

// applyAssignment brings the stored assignment in line with the report.
func (f *Fleet) applyAssignment(state *tracker.VehicleState, report model.AvlReport) bool {
	if !report.HasAssignment() {
		return false
	}
	if state.PreviousAssignmentProblematic(report) {
		// The feed keeps re-offering an assignment that was grabbed or
		// terminated recently. Ignore it until the grace window passes.
		f.log.Debugw("ignoring problematic assignment", map[string]any{
			"vehicle_id":    report.VehicleID,
			"assignment_id": report.AssignmentID,
		})
		return false
	}
	// Nothing to do when the stored assignment already matches and the
	// block is in place. A cleared assignment keeps its id, so the same id
	// without a block still needs re-resolving.
	if !state.HasConflictingAssignment(report) && state.Block() != nil {
		return false
	}

	var block *model.Block
	if f.blocks != nil {
		if b, ok := f.blocks.BlockForAssignment(report.AssignmentID); ok {
			block = b
		} else {
			f.log.Warnf("vehicle %s assigned to unknown block %s", report.VehicleID, report.AssignmentID)
		}
	}

	hadBlock := state.Block() != nil
	// Predictability is only granted once the vehicle actually matches to
	// the new assignment.
	state.SetAssignment(block, model.AssignmentAvlFeed, report.AssignmentID, false)
	if hadBlock && block == nil {
		f.notifyUnpredictable(state.VehicleID(), model.AssignmentAvlFeed)
		return true
	}
	return false
}

// applyMatch runs the matcher and maintains the bad match tolerance: a few
// failed attempts are ignored, past the limit the vehicle loses its
// assignment.
func (f *Fleet) applyMatch(state *tracker.VehicleState, report model.AvlReport) (matchFailed, terminated bool) {
	if state.Block() == nil {
		return false, false
	}

	match := f.matcher.Match(state, report)
	if match != nil {
		if !state.Predictable() {
			state.SetAssignment(state.Block(), state.AssignmentMethod(), state.AssignmentID(), true)
		}
		state.RecordMatch(match)
		return false, false
	}

	if !state.Predictable() {
		return true, false
	}
	state.IncrementBadMatches()
	if !state.OverBadMatchLimit() {
		f.log.Debugf("vehicle %s bad match %d, keeping assignment", state.VehicleID(), state.BadMatches())
		return true, false
	}

	f.log.Infof("vehicle %s exceeded bad match limit, terminating assignment", state.VehicleID())
	state.RecordMatch(nil)
	state.ClearAssignment(model.AssignmentTerminated)
	f.notifyUnpredictable(state.VehicleID(), model.AssignmentTerminated)
	return true, true
}

// Snapshot builds and encodes the current snapshot for a vehicle on demand.
func (f *Fleet) Snapshot(vehicleID string) ([]byte, error) {
	stripe := &f.stripes[stripeFor(vehicleID)]
	stripe.Lock()
	defer stripe.Unlock()

	f.mu.RLock()
	state, ok := f.states[vehicleID]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown vehicle %s", vehicleID)
	}
	return snapshot.Encode(snapshot.Build(state, f.predictions))
}

// Remove drops the state for a vehicle. Eviction policy for vehicles that
// stopped reporting belongs to the hosting process, not the fleet.
func (f *Fleet) Remove(vehicleID string) {
	stripe := &f.stripes[stripeFor(vehicleID)]
	stripe.Lock()
	defer stripe.Unlock()

	f.mu.Lock()
	delete(f.states, vehicleID)
	f.mu.Unlock()
}

// Len returns the number of tracked vehicles.
func (f *Fleet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.states)
}

// State returns the tracking state for a vehicle, or nil. The caller must
// not retain or mutate it outside the serialized ingestion path; it exists
// for the matcher and prediction collaborators running on that path.
func (f *Fleet) State(vehicleID string) *tracker.VehicleState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.states[vehicleID]
}

func (f *Fleet) state(vehicleID string) *tracker.VehicleState {
	f.mu.RLock()
	state, ok := f.states[vehicleID]
	f.mu.RUnlock()
	if ok {
		return state
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if state, ok = f.states[vehicleID]; ok {
		return state
	}
	state = tracker.NewVehicleState(vehicleID, f.cfg, f.clock)
	f.states[vehicleID] = state
	f.log.Infof("tracking new vehicle %s", vehicleID)
	return state
}

func (f *Fleet) publish(state *tracker.VehicleState) error {
	start := time.Now()
	payload, err := snapshot.Encode(snapshot.Build(state, f.predictions))
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", state.VehicleID(), err)
	}
	if err := f.publisher.PublishSnapshot(state.VehicleID(), payload); err != nil {
		return fmt.Errorf("publish snapshot for %s: %w", state.VehicleID(), err)
	}

	if f.bus != nil {
		f.bus.Publish(events.SnapshotEvent{VehicleID: state.VehicleID(), Bytes: len(payload)})
	}
	if err := f.sink.RecordSnapshotsPublished([]metrics.PublishRecord{{
		VehicleID: state.VehicleID(),
		Bytes:     len(payload),
		Latency:   time.Since(start),
	}}); err != nil {
		f.log.Errorf("record publish metrics: %v", err)
	}
	return nil
}

func (f *Fleet) publishMetrics(state *tracker.VehicleState, report model.AvlReport, matchFailed, madeUnpredictable bool) {
	if f.bus != nil {
		f.bus.Publish(events.ReportEvent{
			VehicleID:   report.VehicleID,
			Time:        report.Time,
			Predictable: state.Predictable(),
			MatchFailed: matchFailed,
		})
	}
	if err := f.sink.RecordTrackEvents([]metrics.TrackEvent{{
		VehicleID:         report.VehicleID,
		AssignmentMethod:  state.AssignmentMethod().String(),
		Predictable:       state.Predictable(),
		MatchFailed:       matchFailed,
		MadeUnpredictable: madeUnpredictable,
	}}); err != nil {
		f.log.Errorf("record track metrics: %v", err)
	}
}

func (f *Fleet) notifyUnpredictable(vehicleID string, method model.AssignmentMethod) {
	if f.bus != nil {
		f.bus.Publish(events.UnpredictableEvent{VehicleID: vehicleID, Method: method})
	}
}

func stripeFor(vehicleID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	return h.Sum32() % lockStripes
}
