package ports

import (
	"context"
	"time"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// DeliveryStore persists the ingest endpoint's delivery state.
type DeliveryStore interface {
	// Get returns the delivery or domain.ErrDeliveryNotFound.
	Get(ctx context.Context, deliveryID string) (*domain.Delivery, error)
	// SetStatus atomically applies a status transition, creating the
	// delivery as PENDING first when it does not exist. It returns
	// domain.ErrInvalidTransition when the stored status does not allow it.
	SetStatus(ctx context.Context, deliveryID string, status domain.DeliveryStatus, at time.Time) (*domain.Delivery, error)
	// RecordLocation atomically sets the delivery status and its latest
	// location, checking the transition against the stored status. It
	// returns domain.ErrDeliveryNotFound for unknown deliveries and
	// domain.ErrInvalidTransition for finished ones.
	RecordLocation(ctx context.Context, deliveryID string, status domain.DeliveryStatus, point domain.TrackingPoint, message string, at time.Time) error
}
