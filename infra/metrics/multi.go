package metrics

import coremetrics "github.com/openfleet/avltracker/core/metrics"

// MultiSink fans tracking events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTrackEvents forwards the events to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordTrackEvents(events []coremetrics.TrackEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordTrackEvents(events); err != nil {
			return err
		}
	}
	return nil
}

// RecordSnapshotsPublished forwards the records to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordSnapshotsPublished(records []coremetrics.PublishRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordSnapshotsPublished(records); err != nil {
			return err
		}
	}
	return nil
}

// RecordFeedLag forwards the record to the sinks that track feed lag.
func (m *MultiSink) RecordFeedLag(r coremetrics.FeedLagRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.FeedLagRecorder); ok {
			if err := rec.RecordFeedLag(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordUnpredictable forwards the record to the sinks that track lost
// assignments.
func (m *MultiSink) RecordUnpredictable(r coremetrics.UnpredictableRecord) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.UnpredictableRecorder); ok {
			if err := rec.RecordUnpredictable(r); err != nil {
				return err
			}
		}
	}
	return nil
}
