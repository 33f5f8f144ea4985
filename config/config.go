package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/openfleet/avltracker/core/metrics"
	"github.com/openfleet/avltracker/core/tracker"
	"github.com/openfleet/avltracker/infra/mqtt"
)

type Config struct {
	MQTT    mqtt.Config    `json:"mqtt"`
	Tracker TrackerConfig  `json:"tracker"`
	Metrics metrics.Config `json:"metrics"`
}

// TrackerConfig is the file representation of tracker.Config, with windows
// in seconds.
type TrackerConfig struct {
	AvlHistorySize                int     `json:"avl_history_size"`
	MatchHistorySize              int     `json:"match_history_size"`
	BadMatchLimit                 int     `json:"bad_match_limit"`
	HeadingStalenessSeconds       int     `json:"heading_staleness_seconds"`
	PreviousReportLookbackSeconds int     `json:"previous_report_lookback_seconds"`
	ReassignmentGraceSeconds      int     `json:"reassignment_grace_seconds"`
	ProblematicGraceSeconds       int     `json:"problematic_grace_seconds"`
	LayoverRadiusMeters           float64 `json:"layover_radius_meters"`
}

// Tracker converts the file representation into a tracker.Config with
// defaults applied for omitted fields.
func (c TrackerConfig) Tracker() tracker.Config {
	cfg := tracker.Config{
		AvlHistorySize:              c.AvlHistorySize,
		MatchHistorySize:            c.MatchHistorySize,
		BadMatchLimit:               c.BadMatchLimit,
		HeadingStaleness:            time.Duration(c.HeadingStalenessSeconds) * time.Second,
		PreviousReportLookback:      time.Duration(c.PreviousReportLookbackSeconds) * time.Second,
		ReassignmentGrace:           time.Duration(c.ReassignmentGraceSeconds) * time.Second,
		ProblematicAssignmentGrace:  time.Duration(c.ProblematicGraceSeconds) * time.Second,
		LayoverDeadheadRadiusMeters: c.LayoverRadiusMeters,
	}
	cfg.SetDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.MQTT.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Tracker.Tracker().Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
