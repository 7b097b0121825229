package ports

import (
	"context"
	"time"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// TrackingLocation is the location payload of a tracking update.
type TrackingLocation struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Speed     *float64
	Heading   *float64
	Timestamp time.Time
}

// TrackingUpdate is one automatic position report for a delivery.
type TrackingUpdate struct {
	DeliveryID  string
	Status      domain.DeliveryStatus
	Message     string
	Location    TrackingLocation
	IsAutomatic bool
}

// TrackingAPI is the remote tracking backend: the ingest endpoint the
// transmitter posts to and the delivery-status endpoint the session polls.
type TrackingAPI interface {
	SendTracking(ctx context.Context, update TrackingUpdate) error
	DeliveryStatus(ctx context.Context, deliveryID string) (domain.DeliveryStatus, error)
}
