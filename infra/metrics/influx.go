package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	coremetrics "github.com/openfleet/avltracker/core/metrics"
	"github.com/openfleet/avltracker/infra/logger"
)

// InfluxSink writes tracking events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB
// endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns
// a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordTrackEvents writes the track events as line protocol points.
func (s *InfluxSink) RecordTrackEvents(events []coremetrics.TrackEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, e := range events {
		p := influxdb2.NewPoint("avl_report",
			map[string]string{
				"vehicle_id":        e.VehicleID,
				"assignment_method": e.AssignmentMethod,
			},
			map[string]any{
				"predictable":        e.Predictable,
				"match_failed":       e.MatchFailed,
				"made_unpredictable": e.MadeUnpredictable,
			},
			time.Now())
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordSnapshotsPublished writes the publish records as line protocol
// points.
func (s *InfluxSink) RecordSnapshotsPublished(records []coremetrics.PublishRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range records {
		p := influxdb2.NewPoint("snapshot_publish",
			map[string]string{"vehicle_id": r.VehicleID},
			map[string]any{
				"bytes":      r.Bytes,
				"latency_ms": float64(r.Latency.Microseconds()) / 1000.0,
			},
			time.Now())
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying InfluxDB client.
func (s *InfluxSink) Close() { s.client.Close() }
