package tracker

import (
	"testing"
	"time"

	"github.com/openfleet/avltracker/core/model"
)

// A short eastbound segment near Paris; heading is ~90 degrees.
var eastbound = model.Vector{
	From: model.Location{Lat: 48.8566, Lon: 2.3522},
	To:   model.Location{Lat: 48.8566, Lon: 2.3622},
}

// Northbound, heading ~0 degrees.
var northbound = model.Vector{
	From: model.Location{Lat: 48.8566, Lon: 2.3522},
	To:   model.Location{Lat: 48.8666, Lon: 2.3522},
}

func tripWithPaths(paths ...model.StopPath) *model.Trip {
	return &model.Trip{ID: "t1", StopPaths: paths}
}

func headingClose(t *testing.T, got model.Heading, want float32) {
	t.Helper()
	if !got.Valid {
		t.Fatalf("expected a defined heading near %.0f", want)
	}
	diff := got.Degrees - want
	if diff < -1 || diff > 1 {
		t.Fatalf("heading %.1f, want within 1 degree of %.0f", got.Degrees, want)
	}
}

func TestResolveHeadingFromMatchedSegment(t *testing.T) {
	s := newTestState(Config{})
	trip := tripWithPaths(model.StopPath{StopID: "s1", Segments: []model.Vector{eastbound}})
	s.RecordMatch(&model.Match{Trip: trip})

	headingClose(t, s.ResolveHeading(), 90)
}

func TestResolveHeadingIgnoresLayoverPath(t *testing.T) {
	// A layover stub's direction says nothing about where the vehicle goes
	// next, so the match heading must not be used.
	s := newTestState(Config{})
	trip := tripWithPaths(model.StopPath{StopID: "s1", Layover: true, Segments: []model.Vector{eastbound}})
	s.RecordMatch(&model.Match{Trip: trip, Layover: true})

	if h := s.ResolveHeading(); h.Valid {
		t.Fatalf("expected undefined heading, got %.1f", h.Degrees)
	}
}

func TestResolveHeadingFromRecentReport(t *testing.T) {
	s := newTestState(Config{HeadingStaleness: 2 * time.Minute})

	// No match at all; the newest report has no heading but the one before
	// it does and is fresh enough.
	older := report("bus-1", baseTime.Add(-time.Minute), model.Location{})
	older.Heading = model.HeadingOf(45)
	s.RecordAvlReport(older)
	s.RecordAvlReport(report("bus-1", baseTime, model.Location{}))

	headingClose(t, s.ResolveHeading(), 45)
}

func TestResolveHeadingStopsAtStaleReports(t *testing.T) {
	s := newTestState(Config{HeadingStaleness: 2 * time.Minute})

	// The defined heading sits behind a stale report; the scan must stop
	// there rather than dig further back.
	stale := report("bus-1", baseTime.Add(-10*time.Minute), model.Location{})
	stale.Heading = model.HeadingOf(45)
	s.RecordAvlReport(stale)
	s.RecordAvlReport(report("bus-1", baseTime, model.Location{}))

	if h := s.ResolveHeading(); h.Valid {
		t.Fatalf("expected undefined heading, got %.1f", h.Degrees)
	}
}

func TestResolveHeadingFromNextPathAtLayover(t *testing.T) {
	s := newTestState(Config{LayoverDeadheadRadiusMeters: 200})

	trip := tripWithPaths(
		model.StopPath{StopID: "s1", Layover: true, Segments: []model.Vector{eastbound}},
		model.StopPath{StopID: "s2", Segments: []model.Vector{northbound}},
	)
	s.RecordMatch(&model.Match{Trip: trip, StopPathIndex: 0, Layover: true})
	// Vehicle sits at the layover stop, which is the end of the stub.
	s.RecordAvlReport(report("bus-1", baseTime, eastbound.To))

	headingClose(t, s.ResolveHeading(), 0)
}

func TestResolveHeadingNotAtLayoverStop(t *testing.T) {
	s := newTestState(Config{LayoverDeadheadRadiusMeters: 200})

	trip := tripWithPaths(
		model.StopPath{StopID: "s1", Layover: true, Segments: []model.Vector{eastbound}},
		model.StopPath{StopID: "s2", Segments: []model.Vector{northbound}},
	)
	s.RecordMatch(&model.Match{Trip: trip, StopPathIndex: 0, Layover: true})
	// ~1.1 km from the layover stop: probably deadheading, heading unknown.
	s.RecordAvlReport(report("bus-1", baseTime, model.Location{Lat: 48.8666, Lon: 2.3622}))

	if h := s.ResolveHeading(); h.Valid {
		t.Fatalf("expected undefined heading away from the layover, got %.1f", h.Degrees)
	}
}

func TestResolveHeadingLayoverWithoutNextPath(t *testing.T) {
	s := newTestState(Config{LayoverDeadheadRadiusMeters: 200})

	trip := tripWithPaths(model.StopPath{StopID: "s1", Layover: true, Segments: []model.Vector{eastbound}})
	s.RecordMatch(&model.Match{Trip: trip, StopPathIndex: 0, Layover: true})
	s.RecordAvlReport(report("bus-1", baseTime, eastbound.To))

	if h := s.ResolveHeading(); h.Valid {
		t.Fatalf("expected undefined heading at the last stop path, got %.1f", h.Degrees)
	}
}

func TestResolveHeadingUnmatchedNoReports(t *testing.T) {
	s := newTestState(Config{})
	if h := s.ResolveHeading(); h.Valid {
		t.Fatal("fresh state must have an undefined heading")
	}
}
