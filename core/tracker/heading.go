package tracker

import "github.com/openfleet/avltracker/core/model"

// ResolveHeading returns the best display heading for the vehicle. The
// matched path segment is preferred so that vehicles drawn on a map line up
// with the route. When that is undefined the most recent GPS heading is
// used, and as a last resort the segment just past a layover. The result can
// legitimately be undefined.
func (s *VehicleState) ResolveHeading() model.Heading {
	if h := s.pathHeading(); h.Valid {
		return h
	}
	if h := s.recentValidHeading(); h.Valid {
		return h
	}
	return s.nextPathHeadingIfAtLayover()
}

// pathHeading is the heading of the vector defining the stop path segment
// the vehicle is currently matched to. Undefined when unmatched or when the
// matched path is a layover stub, whose direction says nothing about where
// the vehicle is actually going.
func (s *VehicleState) pathHeading() model.Heading {
	match := s.Match()
	if match == nil {
		return model.Heading{}
	}

	stopPath := match.StopPath()
	if stopPath == nil || stopPath.Layover {
		return model.Heading{}
	}

	vector := stopPath.SegmentVector(match.SegmentIndex)
	if vector == nil {
		return model.Heading{}
	}
	return model.HeadingOf(vector.Heading())
}

// recentValidHeading scans the AVL history for the latest defined heading.
// The scan stops as soon as it reaches a report older than the staleness
// window: after a turn near a layover an old heading would point the wrong
// way, so stale history yields undefined rather than a further search.
func (s *VehicleState) recentValidHeading() model.Heading {
	maxAge := s.clock.Now().Add(-s.cfg.HeadingStaleness)

	for i := 0; i < s.avlHistory.Len(); i++ {
		report, _ := s.avlHistory.At(i)
		if report.Time.Before(maxAge) {
			return model.Heading{}
		}
		if report.Heading.Valid {
			return report.Heading
		}
	}
	return model.Heading{}
}

// nextPathHeadingIfAtLayover is the heading of the first segment of the stop
// path after the layover the vehicle is matched to. Only applies while the
// vehicle is actually near the layover stop; farther away it is likely
// deadheading somewhere else entirely.
func (s *VehicleState) nextPathHeadingIfAtLayover() model.Heading {
	match := s.Match()
	if match == nil || !match.Layover {
		return model.Heading{}
	}

	report, ok := s.AvlReport()
	if !ok {
		return model.Heading{}
	}
	stopPath := match.StopPath()
	if stopPath == nil {
		return model.Heading{}
	}
	if stopPath.EndOfPathLocation().Distance(report.Location) > s.cfg.LayoverDeadheadRadiusMeters {
		return model.Heading{}
	}

	if match.Trip.NumStopPaths() <= match.StopPathIndex+1 {
		return model.Heading{}
	}
	next := match.Trip.StopPath(match.StopPathIndex + 1)
	vector := next.SegmentVector(0)
	if vector == nil {
		return model.Heading{}
	}
	return model.HeadingOf(vector.Heading())
}
