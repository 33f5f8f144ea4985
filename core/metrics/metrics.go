package metrics

import "time"

// TrackEvent describes one processed AVL report for observability purposes.
type TrackEvent struct {
	VehicleID         string
	AssignmentMethod  string
	Predictable       bool
	MatchFailed       bool
	MadeUnpredictable bool
}

// PublishRecord describes one published snapshot.
type PublishRecord struct {
	VehicleID string
	Bytes     int
	Latency   time.Duration
}

// FeedLagRecord measures the delay between a report's feed timestamp and the
// moment it was processed.
type FeedLagRecord struct {
	VehicleID string
	Lag       time.Duration
	Time      time.Time
}

// UnpredictableRecord describes one vehicle losing its assignment.
type UnpredictableRecord struct {
	VehicleID string
	Method    string
	Time      time.Time
}

// Sink records tracking events for observability purposes.
type Sink interface {
	RecordTrackEvents(events []TrackEvent) error
	RecordSnapshotsPublished(records []PublishRecord) error
}

// FeedLagRecorder is implemented by sinks that keep a series for feed lag.
type FeedLagRecorder interface {
	RecordFeedLag(FeedLagRecord) error
}

// UnpredictableRecorder is implemented by sinks that keep a dedicated series
// for vehicles losing their assignment.
type UnpredictableRecorder interface {
	RecordUnpredictable(UnpredictableRecord) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordTrackEvents([]TrackEvent) error           { return nil }
func (NopSink) RecordSnapshotsPublished([]PublishRecord) error { return nil }
