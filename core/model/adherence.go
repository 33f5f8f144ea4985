package model

import "time"

// ScheduleAdherence is the signed difference between a vehicle's actual and
// scheduled progress. Positive means the vehicle is ahead of schedule.
type ScheduleAdherence struct {
	Millis int64 `json:"millis"`
}

// Duration returns the adherence as a time.Duration.
func (a ScheduleAdherence) Duration() time.Duration {
	return time.Duration(a.Millis) * time.Millisecond
}
