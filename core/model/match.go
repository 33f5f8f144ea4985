package model

// Match is the result of associating an AVL report with a position along a
// trip's stop paths. It is produced by the external matcher and treated as
// opaque by the tracker apart from the accessors below.
type Match struct {
	Trip          *Trip
	StopPathIndex int
	SegmentIndex  int
	// Layover marks the matched stop path as a layover, where the vehicle
	// may deviate from the path while the driver is on break.
	Layover bool
	// AtStop is set by the matcher when the match lies exactly at a stop
	// boundary, i.e. at the very start of a stop path.
	AtStop bool
}

// StopPath returns the matched stop path, or nil if the trip data is missing.
func (m *Match) StopPath() *StopPath {
	if m == nil || m.Trip == nil {
		return nil
	}
	return m.Trip.StopPath(m.StopPathIndex)
}

// BeforeStopIfAtStop returns the match adjusted to its pre-stop form. A match
// that lies exactly at a stop boundary is recorded against the start of the
// following stop path; for determining the stop being served and its layover
// state it must refer to the path that ends at that stop instead.
func (m *Match) BeforeStopIfAtStop() *Match {
	if m == nil || !m.AtStop || m.StopPathIndex == 0 {
		return m
	}
	prev := m.Trip.StopPath(m.StopPathIndex - 1)
	if prev == nil {
		return m
	}
	adjusted := *m
	adjusted.StopPathIndex = m.StopPathIndex - 1
	adjusted.SegmentIndex = len(prev.Segments) - 1
	if adjusted.SegmentIndex < 0 {
		adjusted.SegmentIndex = 0
	}
	adjusted.Layover = prev.Layover
	adjusted.AtStop = false
	return &adjusted
}
