package ports

import (
	"context"
	"time"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// SensorOptions parameterizes a single acquisition tier.
type SensorOptions struct {
	HighAccuracy bool
	// Timeout bounds how long the sensor may take to produce a reading.
	Timeout time.Duration
	// MaxStaleness is the oldest cached reading the sensor may return.
	MaxStaleness time.Duration
}

// WatchID identifies a continuous sensor subscription.
type WatchID uint64

// SensorReading is one delivery from a watch: either a Position or an error.
type SensorReading struct {
	Watch    WatchID
	Position domain.Position
	Err      error
}

// LocationSensor is the platform location capability. Implementations wrap
// failures in one of the domain sensor errors.
type LocationSensor interface {
	// AcquireOnce returns a single reading, honouring opts.Timeout and ctx.
	AcquireOnce(ctx context.Context, opts SensorOptions) (domain.Position, error)
	// Watch starts a continuous subscription delivering readings to sink
	// until CancelWatch is called. Sends to sink must not block forever:
	// implementations drop readings for cancelled watches.
	Watch(opts SensorOptions, sink func(SensorReading)) (WatchID, error)
	// CancelWatch ends the subscription. Cancelling an unknown id is a no-op.
	CancelWatch(id WatchID)
}
