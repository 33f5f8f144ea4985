package tracker

import (
	"fmt"
	"time"
)

// Config holds the tuning knobs for per-vehicle tracking state.
type Config struct {
	// AvlHistorySize bounds the AVL report history per vehicle.
	AvlHistorySize int
	// MatchHistorySize bounds the match history per vehicle.
	MatchHistorySize int
	// BadMatchLimit is how many consecutive bad matches are tolerated
	// before the vehicle should be made unpredictable.
	BadMatchLimit int
	// HeadingStaleness is how old the newest AVL report may be before its
	// heading is no longer trusted for display.
	HeadingStaleness time.Duration
	// PreviousReportLookback bounds how far back in time the history scan
	// for a distant previous report may go.
	PreviousReportLookback time.Duration
	// ReassignmentGrace is the window in which reacquiring the same block
	// counts as a continuation of the previous assignment.
	ReassignmentGrace time.Duration
	// ProblematicAssignmentGrace is the window in which a problematic
	// assignment must not be silently re-accepted.
	ProblematicAssignmentGrace time.Duration
	// LayoverDeadheadRadiusMeters is how close to the layover stop the
	// vehicle must be for the next path heading to apply.
	LayoverDeadheadRadiusMeters float64
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.AvlHistorySize == 0 {
		c.AvlHistorySize = 6
	}
	if c.MatchHistorySize == 0 {
		c.MatchHistorySize = 6
	}
	if c.BadMatchLimit == 0 {
		c.BadMatchLimit = 2
	}
	if c.HeadingStaleness == 0 {
		c.HeadingStaleness = 2 * time.Minute
	}
	if c.PreviousReportLookback == 0 {
		c.PreviousReportLookback = 20 * time.Minute
	}
	if c.ReassignmentGrace == 0 {
		c.ReassignmentGrace = 20 * time.Minute
	}
	if c.ProblematicAssignmentGrace == 0 {
		c.ProblematicAssignmentGrace = 2 * time.Hour
	}
	if c.LayoverDeadheadRadiusMeters == 0 {
		c.LayoverDeadheadRadiusMeters = 200
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.AvlHistorySize < 1 {
		return fmt.Errorf("avl history size must be positive, got %d", c.AvlHistorySize)
	}
	if c.MatchHistorySize < 1 {
		return fmt.Errorf("match history size must be positive, got %d", c.MatchHistorySize)
	}
	if c.BadMatchLimit < 0 {
		return fmt.Errorf("bad match limit must not be negative, got %d", c.BadMatchLimit)
	}
	if c.LayoverDeadheadRadiusMeters < 0 {
		return fmt.Errorf("layover deadhead radius must not be negative, got %f", c.LayoverDeadheadRadiusMeters)
	}
	return nil
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}
