package model

import "math"

const earthRadiusMeters = 6371000.0

// Location is a geographic point in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Distance returns the great-circle distance to other in meters.
func (l Location) Distance(other Location) float64 {
	lat1 := l.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - l.Lat) * math.Pi / 180
	dLon := (other.Lon - l.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Vector is a directed line segment between two locations, used for the
// segments that make up a stop path.
type Vector struct {
	From Location
	To   Location
}

// Heading returns the compass heading of the vector in degrees clockwise
// from north, in [0, 360).
func (v Vector) Heading() float32 {
	lat1 := v.From.Lat * math.Pi / 180
	lat2 := v.To.Lat * math.Pi / 180
	dLon := (v.To.Lon - v.From.Lon) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return float32(math.Mod(deg+360, 360))
}
