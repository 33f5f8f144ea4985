package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/openfleet/avltracker/core/metrics"
)

// PromSink records tracking events in Prometheus metrics.
type PromSink struct {
	reports        *prometheus.CounterVec
	unpredictable  *prometheus.CounterVec
	snapshots      *prometheus.CounterVec
	publishLatency prometheus.Histogram
	feedLag        prometheus.Histogram
}

// NewPromSink registers tracking metrics on the provided Prometheus
// registerer. If reg is nil, the default registerer is used. If the
// collectors are already registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "avl_reports_total",
		Help: "Total number of AVL reports processed",
	}, []string{"assignment_method", "predictable", "match_failed"})
	unpredictable := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vehicles_made_unpredictable_total",
		Help: "Total number of times a vehicle lost its assignment",
	}, []string{"assignment_method"})
	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshots_published_total",
		Help: "Total number of snapshots published",
	}, []string{"vehicle_id"})
	publishLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_publish_latency_seconds",
		Help:    "Time between state update and snapshot publication",
		Buckets: prometheus.DefBuckets,
	})
	feedLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "avl_feed_lag_seconds",
		Help:    "Delay between a report's feed timestamp and its processing",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	if err := reg.Register(reports); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			reports = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(unpredictable); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			unpredictable = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(snapshots); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			snapshots = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(publishLatency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			publishLatency = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(feedLag); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			feedLag = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		reports:        reports,
		unpredictable:  unpredictable,
		snapshots:      snapshots,
		publishLatency: publishLatency,
		feedLag:        feedLag,
	}, nil
}

// RecordTrackEvents increments the report counters for each event. The
// unpredictable counter is fed from the event bus, not from here, so it
// counts each loss of assignment exactly once.
func (s *PromSink) RecordTrackEvents(events []coremetrics.TrackEvent) error {
	for _, e := range events {
		s.reports.WithLabelValues(
			e.AssignmentMethod,
			strconv.FormatBool(e.Predictable),
			strconv.FormatBool(e.MatchFailed),
		).Inc()
	}
	return nil
}

// RecordFeedLag observes the feed-to-processing delay of one report.
func (s *PromSink) RecordFeedLag(r coremetrics.FeedLagRecord) error {
	s.feedLag.Observe(r.Lag.Seconds())
	return nil
}

// RecordUnpredictable increments the unpredictable counter for the method
// that ended the assignment.
func (s *PromSink) RecordUnpredictable(r coremetrics.UnpredictableRecord) error {
	s.unpredictable.WithLabelValues(r.Method).Inc()
	return nil
}

// RecordSnapshotsPublished records the published snapshots and their latency.
func (s *PromSink) RecordSnapshotsPublished(records []coremetrics.PublishRecord) error {
	for _, r := range records {
		s.snapshots.WithLabelValues(r.VehicleID).Inc()
		s.publishLatency.Observe(r.Latency.Seconds())
	}
	return nil
}
