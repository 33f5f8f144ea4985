package model

// Block is a scheduled sequence of trips served by one vehicle. The tracker
// only needs its identity; the full service plan lives in the schedule store.
type Block struct {
	ID string
}

// Trip is an ordered sequence of stop paths within a block, already resolved
// by the external matcher together with its route metadata.
type Trip struct {
	ID             string
	PatternID      string
	DirectionID    string
	Headsign       string
	RouteID        string
	RouteShortName string
	// VehicleType is the route's vehicle type (bus, tram, ...).
	VehicleType string

	StopPaths []StopPath
}

// StopPath returns the stop path at index, or nil when out of range.
func (t *Trip) StopPath(index int) *StopPath {
	if t == nil || index < 0 || index >= len(t.StopPaths) {
		return nil
	}
	return &t.StopPaths[index]
}

// NumStopPaths returns how many stop paths the trip has.
func (t *Trip) NumStopPaths() int {
	if t == nil {
		return 0
	}
	return len(t.StopPaths)
}

// StopPath is a named path segment sequence ending at a stop.
type StopPath struct {
	StopID string
	// Layover marks a stop where the driver may take a break and the vehicle
	// can leave the path before departing.
	Layover  bool
	Segments []Vector
}

// SegmentVector returns the line segment at index, or nil when out of range.
func (p *StopPath) SegmentVector(index int) *Vector {
	if p == nil || index < 0 || index >= len(p.Segments) {
		return nil
	}
	return &p.Segments[index]
}

// EndOfPathLocation returns the location where the path ends, which is the
// stop itself.
func (p *StopPath) EndOfPathLocation() Location {
	if len(p.Segments) == 0 {
		return Location{}
	}
	return p.Segments[len(p.Segments)-1].To
}
