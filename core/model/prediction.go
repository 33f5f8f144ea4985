package model

import "sync"

// Prediction is a single predicted stop time for a vehicle, opaque to the
// tracker beyond the key fields and the predicted time.
type Prediction struct {
	VehicleID      string `json:"vehicle_id"`
	RouteShortName string `json:"route_short_name"`
	StopID         string `json:"stop_id"`
	// Time is the predicted epoch time in milliseconds.
	Time int64 `json:"time"`
}

// PredictionLookup resolves the cached prediction for a vehicle at a stop.
// The second return is false when no prediction is cached.
type PredictionLookup interface {
	PredictionForVehicle(vehicleID, routeShortName, stopID string) (int64, bool)
}

// PredictionCache is an in-memory PredictionLookup fed by the external
// prediction generator.
type PredictionCache struct {
	mu    sync.RWMutex
	byKey map[predictionKey]int64
}

type predictionKey struct {
	vehicleID      string
	routeShortName string
	stopID         string
}

// NewPredictionCache returns an empty cache.
func NewPredictionCache() *PredictionCache {
	return &PredictionCache{byKey: make(map[predictionKey]int64)}
}

// Put stores or replaces the prediction for its key.
func (c *PredictionCache) Put(p Prediction) {
	c.mu.Lock()
	c.byKey[predictionKey{p.VehicleID, p.RouteShortName, p.StopID}] = p.Time
	c.mu.Unlock()
}

// PredictionForVehicle implements PredictionLookup.
func (c *PredictionCache) PredictionForVehicle(vehicleID, routeShortName, stopID string) (int64, bool) {
	c.mu.RLock()
	t, ok := c.byKey[predictionKey{vehicleID, routeShortName, stopID}]
	c.mu.RUnlock()
	return t, ok
}
