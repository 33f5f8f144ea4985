package metrics

import (
	"context"
	"time"

	"github.com/openfleet/avltracker/core/events"
	coremetrics "github.com/openfleet/avltracker/core/metrics"
	"github.com/openfleet/avltracker/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.Sink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.ReportEvent:
					if r, ok := sink.(coremetrics.FeedLagRecorder); ok {
						_ = r.RecordFeedLag(coremetrics.FeedLagRecord{
							VehicleID: e.VehicleID,
							Lag:       time.Since(e.Time),
							Time:      time.Now(),
						})
					}
				case events.UnpredictableEvent:
					if r, ok := sink.(coremetrics.UnpredictableRecorder); ok {
						_ = r.RecordUnpredictable(coremetrics.UnpredictableRecord{
							VehicleID: e.VehicleID,
							Method:    e.Method.String(),
							Time:      time.Now(),
						})
					}
				}
			}
		}
	}()
}
