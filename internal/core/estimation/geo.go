package estimation

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

func point(c domain.Coordinates) orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// Distance returns the great-circle (haversine) distance in meters.
func Distance(a, b domain.Coordinates) float64 {
	return geo.DistanceHaversine(point(a), point(b))
}

// PositionDistance returns the haversine distance between two readings.
func PositionDistance(a, b domain.Position) float64 {
	return Distance(a.Coordinates(), b.Coordinates())
}
