package tracker

import "time"

// Clock supplies the current time for staleness comparisons, keeping the
// tracking logic deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall-clock Clock used in production.
var SystemClock Clock = systemClock{}
