package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/openfleet/avltracker/core/events"
	"github.com/openfleet/avltracker/core/fleet"
	coremetrics "github.com/openfleet/avltracker/core/metrics"
	"github.com/openfleet/avltracker/core/model"
	"github.com/openfleet/avltracker/core/tracker"
	"github.com/openfleet/avltracker/infra/logger"
	"github.com/openfleet/avltracker/internal/eventbus"
)

type recorderSink struct {
	coremetrics.NopSink
	lags          chan coremetrics.FeedLagRecord
	unpredictable chan coremetrics.UnpredictableRecord
}

func newRecorderSink() *recorderSink {
	return &recorderSink{
		lags:          make(chan coremetrics.FeedLagRecord, 8),
		unpredictable: make(chan coremetrics.UnpredictableRecord, 8),
	}
}

func (s *recorderSink) RecordFeedLag(r coremetrics.FeedLagRecord) error {
	s.lags <- r
	return nil
}

func (s *recorderSink) RecordUnpredictable(r coremetrics.UnpredictableRecord) error {
	s.unpredictable <- r
	return nil
}

func TestEventCollectorRecordsReportEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	defer bus.Close()
	sink := newRecorderSink()
	StartEventCollector(ctx, bus, sink)

	bus.Publish(events.ReportEvent{
		VehicleID:   "bus-1",
		Time:        time.Now().Add(-3 * time.Second),
		Predictable: true,
	})

	select {
	case r := <-sink.lags:
		if r.VehicleID != "bus-1" {
			t.Errorf("vehicle id = %q", r.VehicleID)
		}
		if r.Lag < 2*time.Second {
			t.Errorf("lag = %v, want at least the report age", r.Lag)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no feed lag recorded")
	}
}

func TestEventCollectorRecordsUnpredictableEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	defer bus.Close()
	sink := newRecorderSink()
	StartEventCollector(ctx, bus, sink)

	bus.Publish(events.UnpredictableEvent{VehicleID: "bus-2", Method: model.AssignmentTerminated})

	select {
	case r := <-sink.unpredictable:
		if r.VehicleID != "bus-2" {
			t.Errorf("vehicle id = %q", r.VehicleID)
		}
		if r.Method != model.AssignmentTerminated.String() {
			t.Errorf("method = %q", r.Method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no unpredictable event recorded")
	}
}

func TestEventCollectorIgnoresPlainSink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	defer bus.Close()
	// A sink without the recorder interfaces must not break the collector.
	StartEventCollector(ctx, bus, coremetrics.NopSink{})

	bus.Publish(events.ReportEvent{VehicleID: "bus-1", Time: time.Now()})
	bus.Publish(events.SnapshotEvent{VehicleID: "bus-1", Bytes: 42})
	bus.Publish(events.UnpredictableEvent{VehicleID: "bus-1", Method: model.AssignmentGrabbed})
}

func TestEventCollectorNilArguments(t *testing.T) {
	// Both degenerate forms are no-ops.
	StartEventCollector(context.Background(), nil, coremetrics.NopSink{})
	StartEventCollector(context.Background(), eventbus.New(), nil)
}

func TestEventCollectorReceivesFleetEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	defer bus.Close()
	sink := newRecorderSink()
	StartEventCollector(ctx, bus, sink)

	fl, err := fleet.New(tracker.Config{},
		fleet.MatcherFunc(func(*tracker.VehicleState, model.AvlReport) *model.Match { return nil }),
		nil, nil,
		fleet.PublisherFunc(func(string, []byte) error { return nil }),
		bus, sink, logger.NopLogger{})
	if err != nil {
		t.Fatalf("fleet: %v", err)
	}

	report := model.AvlReport{
		VehicleID: "bus-7",
		Time:      time.Now().Add(-time.Second),
		Location:  model.Location{Lat: 48.85, Lon: 2.35},
	}
	if err := fl.Process(report); err != nil {
		t.Fatalf("process: %v", err)
	}

	select {
	case r := <-sink.lags:
		if r.VehicleID != "bus-7" {
			t.Errorf("vehicle id = %q", r.VehicleID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("processing a report produced no feed lag record")
	}
}

func TestMultiSinkForwardsRecorders(t *testing.T) {
	rec := newRecorderSink()
	multi := NewMultiSink(coremetrics.NopSink{}, rec)

	if err := multi.RecordFeedLag(coremetrics.FeedLagRecord{VehicleID: "bus-1", Lag: time.Second}); err != nil {
		t.Fatalf("feed lag: %v", err)
	}
	if err := multi.RecordUnpredictable(coremetrics.UnpredictableRecord{VehicleID: "bus-1", Method: "terminated"}); err != nil {
		t.Fatalf("unpredictable: %v", err)
	}

	if got := <-rec.lags; got.VehicleID != "bus-1" {
		t.Errorf("forwarded lag vehicle = %q", got.VehicleID)
	}
	if got := <-rec.unpredictable; got.Method != "terminated" {
		t.Errorf("forwarded method = %q", got.Method)
	}
}
