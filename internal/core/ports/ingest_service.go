package ports

import (
	"context"
	"time"
)

// LocationInput carries the location of an incoming tracking update.
type LocationInput struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Speed     *float64
	Heading   *float64
	Timestamp time.Time
}

// TrackingEventInput is the DTO passed from the transport layer to IngestService.
type TrackingEventInput struct {
	DeliveryID  string
	Status      string
	Message     string
	Location    LocationInput
	IsAutomatic bool
	CourierID   string
}

// DeliveryView is returned by the delivery-status endpoint.
type DeliveryView struct {
	ID           string
	Status       string
	LastLocation *LocationInput
	UpdatedAt    time.Time
}

// IngestService processes tracking updates and serves delivery status.
type IngestService interface {
	Process(ctx context.Context, event TrackingEventInput) error
	GetDelivery(ctx context.Context, deliveryID string) (*DeliveryView, error)
	// UpdateStatus applies a status transition, creating the delivery in
	// PENDING state first when it does not exist yet.
	UpdateStatus(ctx context.Context, deliveryID, status string) (*DeliveryView, error)
}
