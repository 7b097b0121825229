package domain

import "time"

// Coordinates represents a geographic point in WGS84 degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Position is a single reading reported by the device location sensor.
// Optional sensor fields are nil when the platform did not report them.
type Position struct {
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	AccuracyMeters       float64   `json:"accuracy"`
	Altitude             *float64  `json:"altitude,omitempty"`
	Heading              *float64  `json:"heading,omitempty"`
	SpeedMetersPerSecond *float64  `json:"speed,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}

// Coordinates returns the horizontal component of the position.
func (p Position) Coordinates() Coordinates {
	return Coordinates{Lat: p.Latitude, Lng: p.Longitude}
}

// Valid reports whether the reading is usable at all: coordinates in range and
// a non-negative accuracy radius.
func (p Position) Valid() bool {
	if p.AccuracyMeters < 0 {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// SpeedKmh returns the reported instantaneous speed in km/h, if any.
func (p Position) SpeedKmh() (float64, bool) {
	if p.SpeedMetersPerSecond == nil {
		return 0, false
	}
	return *p.SpeedMetersPerSecond * 3.6, true
}

// Float returns a pointer to v, for populating optional Position fields.
func Float(v float64) *float64 {
	return &v
}
