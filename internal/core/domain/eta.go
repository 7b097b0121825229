package domain

import "time"

// SpeedSource names which rule of the speed estimate produced the value.
type SpeedSource string

const (
	SpeedFromHistory  SpeedSource = "history"
	SpeedFromReported SpeedSource = "reported"
	SpeedFromDefault  SpeedSource = "default"
)

// ETAEstimate is an arrival estimate recomputed from the current history.
type ETAEstimate struct {
	EstimatedMinutes        int         `json:"estimated_minutes"`
	EstimatedArrival        time.Time   `json:"estimated_arrival"`
	ConfidencePercent       int         `json:"confidence_percent"`
	DistanceMeters          float64     `json:"distance_meters"`
	CorrectedDistanceMeters float64     `json:"corrected_distance_meters"`
	TrafficFactor           float64     `json:"traffic_factor"`
	SpeedKmh                float64     `json:"speed_kmh"`
	SpeedSource             SpeedSource `json:"speed_source"`
	NearDestination         bool        `json:"near_destination"`
	ComputedAt              time.Time   `json:"computed_at"`
}
