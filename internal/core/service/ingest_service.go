package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
	"github.com/99minutos/courier-tracking/internal/metrics"
)

// DedupChecker abstracts the idempotency store (Redis).
type DedupChecker interface {
	IsDuplicate(ctx context.Context, deliveryID, status string, ts time.Time) (bool, error)
	Mark(ctx context.Context, deliveryID, status string, ts time.Time) error
}

type ingestService struct {
	store ports.DeliveryStore
	dedup DedupChecker
	log   zerolog.Logger
	now   func() time.Time
}

// NewIngestService returns an IngestService implementation.
func NewIngestService(store ports.DeliveryStore, dedup DedupChecker, log zerolog.Logger) ports.IngestService {
	return &ingestService{
		store: store,
		dedup: dedup,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Process validates, deduplicates, and stores a single tracking update.
func (s *ingestService) Process(ctx context.Context, in ports.TrackingEventInput) error {
	newStatus := domain.DeliveryStatus(in.Status)
	ts := in.Location.Timestamp

	// 1. Idempotency check: retransmissions of the same fix are skipped.
	isDup, err := s.dedup.IsDuplicate(ctx, in.DeliveryID, in.Status, ts)
	if err != nil {
		s.log.Warn().Err(err).Str("delivery_id", in.DeliveryID).Msg("dedup check failed, processing anyway")
	} else if isDup {
		metrics.IngestEventsTotal.WithLabelValues("duplicate").Inc()
		s.log.Debug().Str("delivery_id", in.DeliveryID).Time("timestamp", ts).Msg("duplicate update skipped")
		return nil
	}

	// 2. Load the delivery.
	delivery, err := s.store.Get(ctx, in.DeliveryID)
	if err != nil {
		metrics.IngestEventsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("process update: %w", err)
	}

	// 3. Validate the status transition.
	if !delivery.Status.CanTransitionTo(newStatus) {
		metrics.IngestEventsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("process update: %w (from %s to %s)", domain.ErrInvalidTransition, delivery.Status, newStatus)
	}

	// 4. Mark as processed before writing (prevents duplicate processing on retry).
	if markErr := s.dedup.Mark(ctx, in.DeliveryID, in.Status, ts); markErr != nil {
		s.log.Warn().Err(markErr).Str("delivery_id", in.DeliveryID).Msg("failed to set dedup key")
	}

	point := domain.TrackingPoint{
		Latitude:  in.Location.Latitude,
		Longitude: in.Location.Longitude,
		Accuracy:  in.Location.Accuracy,
		Speed:     in.Location.Speed,
		Heading:   in.Location.Heading,
		Timestamp: ts,
	}
	// The store re-checks the transition: the delivery may have been
	// finished since it was read above.
	if err := s.store.RecordLocation(ctx, in.DeliveryID, newStatus, point, in.Message, s.now()); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			metrics.IngestEventsTotal.WithLabelValues("rejected").Inc()
			return fmt.Errorf("process update: %w", err)
		}
		metrics.IngestEventsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("process update: record location: %w", err)
	}

	metrics.IngestEventsTotal.WithLabelValues("stored").Inc()
	s.log.Info().
		Str("delivery_id", in.DeliveryID).
		Str("status", in.Status).
		Str("courier_id", in.CourierID).
		Bool("automatic", in.IsAutomatic).
		Float64("accuracy", in.Location.Accuracy).
		Msg("tracking update stored")

	return nil
}

// GetDelivery returns the current state of a delivery.
func (s *ingestService) GetDelivery(ctx context.Context, deliveryID string) (*ports.DeliveryView, error) {
	d, err := s.store.Get(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return toView(d), nil
}

// UpdateStatus applies a manual status change. The store checks the
// transition against the current record atomically.
func (s *ingestService) UpdateStatus(ctx context.Context, deliveryID, status string) (*ports.DeliveryView, error) {
	next := domain.DeliveryStatus(status)
	if !next.Known() {
		return nil, fmt.Errorf("update status: %w (unknown status %q)", domain.ErrInvalidTransition, status)
	}

	d, err := s.store.SetStatus(ctx, deliveryID, next, s.now())
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("delivery_id", deliveryID).Str("status", status).Msg("delivery status updated")
	return toView(d), nil
}

func toView(d *domain.Delivery) *ports.DeliveryView {
	v := &ports.DeliveryView{
		ID:        d.ID,
		Status:    string(d.Status),
		UpdatedAt: d.UpdatedAt,
	}
	if l := d.LastLocation; l != nil {
		v.LastLocation = &ports.LocationInput{
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
			Accuracy:  l.Accuracy,
			Speed:     l.Speed,
			Heading:   l.Heading,
			Timestamp: l.Timestamp,
		}
	}
	return v
}
