package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/openfleet/avltracker/config"
	"github.com/openfleet/avltracker/core/fleet"
	coremetrics "github.com/openfleet/avltracker/core/metrics"
	"github.com/openfleet/avltracker/core/model"
	"github.com/openfleet/avltracker/core/tracker"
	"github.com/openfleet/avltracker/infra/logger"
	"github.com/openfleet/avltracker/infra/metrics"
	"github.com/openfleet/avltracker/infra/mqtt"
	"github.com/openfleet/avltracker/internal/eventbus"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Consume the AVL feed and publish vehicle snapshots",
	RunE:  runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("track")

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
		go func() {
			if err := metrics.StartPromServer(ctx, cfg.Metrics.PrometheusAddr); err != nil {
				log.Errorf("prometheus server: %v", err)
			}
		}()
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	defer bus.Close()
	metrics.StartEventCollector(ctx, bus, sink)

	// The matching algorithm is an external collaborator; the service on its
	// own tracks assignments and publishes unmatched snapshots. Embedders
	// plug a real matcher through the fleet API.
	matcher := fleet.MatcherFunc(func(*tracker.VehicleState, model.AvlReport) *model.Match {
		return nil
	})

	var client *mqtt.PahoClient
	fl, err := fleet.New(cfg.Tracker.Tracker(), matcher, nil, nil,
		fleet.PublisherFunc(func(vehicleID string, payload []byte) error {
			return client.PublishSnapshot(vehicleID, payload)
		}), bus, sink, log)
	if err != nil {
		return fmt.Errorf("fleet: %w", err)
	}

	// The feed subscription fires as soon as the client connects; hold
	// reports back until the client handle is in place for publishing.
	ready := make(chan struct{})
	client, err = mqtt.NewPahoClient(cfg.MQTT, func(report model.AvlReport) {
		<-ready
		if err := fl.Process(report); err != nil {
			log.Errorf("process report for %s: %v", report.VehicleID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	close(ready)
	defer client.Disconnect()

	log.Infof("tracking %s, publishing under %s", cfg.MQTT.FeedTopic, cfg.MQTT.SnapshotTopicPrefix)
	<-ctx.Done()
	log.Infof("shutting down, %d vehicles tracked", fl.Len())
	return nil
}
