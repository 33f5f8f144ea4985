package snapshot

import (
	"testing"
	"time"

	"github.com/openfleet/avltracker/core/model"
	"github.com/openfleet/avltracker/core/tracker"
)

var buildTime = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func matchedState(t *testing.T, trip *model.Trip, match *model.Match) *tracker.VehicleState {
	t.Helper()
	s := tracker.NewVehicleState("bus-1", tracker.DefaultConfig(), nil)
	s.RecordAvlReport(model.AvlReport{
		VehicleID:    "bus-1",
		Time:         buildTime,
		Location:     model.Location{Lat: 48.8566, Lon: 2.3522},
		Heading:      model.HeadingOf(87.5),
		Speed:        11.2,
		AssignmentID: "blk-7",
	})
	s.SetAssignment(&model.Block{ID: "blk-7"}, model.AssignmentAvlFeed, "blk-7", true)
	if match != nil {
		match.Trip = trip
		s.RecordMatch(match)
	}
	return s
}

func TestBuildFromMatchedState(t *testing.T) {
	trip := &model.Trip{
		ID:             "t1",
		PatternID:      "p1",
		DirectionID:    "0",
		Headsign:       "Gare du Nord",
		RouteID:        "r1",
		RouteShortName: "12",
		VehicleType:    "bus",
		StopPaths: []model.StopPath{
			{StopID: "s1", Segments: []model.Vector{{
				From: model.Location{Lat: 48.8566, Lon: 2.3522},
				To:   model.Location{Lat: 48.8566, Lon: 2.3622},
			}}},
		},
	}
	state := matchedState(t, trip, &model.Match{})
	state.SetScheduleAdherence(model.ScheduleAdherence{Millis: -45000})

	s := Build(state, nil)

	if s.VehicleID() != "bus-1" {
		t.Errorf("vehicle id = %q", s.VehicleID())
	}
	if s.BlockID() != "blk-7" {
		t.Errorf("block id = %q", s.BlockID())
	}
	if s.TripID() != "t1" || s.RouteID() != "r1" || s.RouteShortName() != "12" {
		t.Errorf("trip fields = %q %q %q", s.TripID(), s.RouteID(), s.RouteShortName())
	}
	if s.Headsign() != "Gare du Nord" || s.DirectionID() != "0" || s.TripPatternID() != "p1" {
		t.Errorf("trip metadata = %q %q %q", s.Headsign(), s.DirectionID(), s.TripPatternID())
	}
	if !s.Predictable() {
		t.Error("predictable not carried over")
	}
	if s.NextStopID() != "s1" {
		t.Errorf("next stop = %q", s.NextStopID())
	}
	if s.Avl().Time != buildTime.UnixMilli() {
		t.Errorf("avl time = %d", s.Avl().Time)
	}
	adh, ok := s.ScheduleAdherence()
	if !ok || adh.Millis != -45000 {
		t.Errorf("adherence = %+v ok=%t", adh, ok)
	}
	if s.IsLayover() {
		t.Error("not a layover match")
	}
	if !s.Heading().Valid {
		t.Error("heading should resolve from the matched segment")
	}
}

func TestBuildUnassigned(t *testing.T) {
	state := tracker.NewVehicleState("bus-2", tracker.DefaultConfig(), nil)
	state.RecordAvlReport(model.AvlReport{VehicleID: "bus-2", Time: buildTime})

	s := Build(state, nil)
	if s.BlockID() != "" || s.TripID() != "" {
		t.Error("unassigned snapshot must carry no block or trip")
	}
	if s.Predictable() {
		t.Error("unassigned vehicle is not predictable")
	}
	if _, ok := s.ScheduleAdherence(); ok {
		t.Error("no adherence without an assignment")
	}
}

func TestBuildAdherenceWithheldWhenUnpredictable(t *testing.T) {
	state := matchedState(t, &model.Trip{ID: "t1"}, &model.Match{})
	state.SetScheduleAdherence(model.ScheduleAdherence{Millis: 5000})
	state.RecordMatch(nil)

	s := Build(state, nil)
	if _, ok := s.ScheduleAdherence(); ok {
		t.Error("adherence must be withheld once the vehicle is unpredictable")
	}
}

func TestBuildLayoverDeparture(t *testing.T) {
	trip := &model.Trip{
		ID:             "t1",
		RouteShortName: "12",
		StopPaths: []model.StopPath{
			{StopID: "s1", Layover: true},
			{StopID: "s2"},
		},
	}
	state := matchedState(t, trip, &model.Match{StopPathIndex: 0, Layover: true})

	cache := model.NewPredictionCache()
	cache.Put(model.Prediction{VehicleID: "bus-1", RouteShortName: "12", StopID: "s1", Time: 1741593900000})

	s := Build(state, cache)
	if !s.IsLayover() {
		t.Fatal("layover flag lost")
	}
	if s.LayoverDepartureTime() != 1741593900000 {
		t.Errorf("layover departure = %d", s.LayoverDepartureTime())
	}

	// Without a cached prediction the departure stays unset.
	s = Build(state, model.NewPredictionCache())
	if s.LayoverDepartureTime() != 0 {
		t.Errorf("expected no departure, got %d", s.LayoverDepartureTime())
	}
}

func TestBuildAdjustsMatchAtStopBoundary(t *testing.T) {
	// Matched exactly at a stop boundary: the stop being served is the one
	// ending the previous path, which is a layover.
	trip := &model.Trip{
		ID:             "t1",
		RouteShortName: "12",
		StopPaths: []model.StopPath{
			{StopID: "s1", Layover: true, Segments: make([]model.Vector, 1)},
			{StopID: "s2", Segments: make([]model.Vector, 1)},
		},
	}
	state := matchedState(t, trip, &model.Match{StopPathIndex: 1, AtStop: true})

	s := Build(state, nil)
	if s.NextStopID() != "s1" {
		t.Errorf("next stop = %q, want the stop at the boundary", s.NextStopID())
	}
	if !s.IsLayover() {
		t.Error("layover state must come from the adjusted path")
	}
}
