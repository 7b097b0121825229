package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

const maxTxRetries = 10

// DeliveryStore keeps one JSON document per delivery.
// Key format: delivery:<delivery_id>
type DeliveryStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.DeliveryStore = (*DeliveryStore)(nil)

// NewDeliveryStore returns a store whose records expire ttl after their last
// write; zero keeps them forever.
func NewDeliveryStore(client *redis.Client, ttl time.Duration) *DeliveryStore {
	return &DeliveryStore{client: client, ttl: ttl}
}

func (s *DeliveryStore) key(id string) string {
	return "delivery:" + id
}

func (s *DeliveryStore) Get(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	raw, err := s.client.Get(ctx, s.key(deliveryID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery %s: %w", deliveryID, err)
	}
	return decode(raw)
}

// SetStatus applies a status transition in a WATCH/MULTI transaction. A
// missing delivery starts as PENDING. The transition is checked against the
// stored status inside the transaction, so concurrent writers cannot move a
// delivery out of a terminal status.
func (s *DeliveryStore) SetStatus(ctx context.Context, deliveryID string, status domain.DeliveryStatus, at time.Time) (*domain.Delivery, error) {
	d, err := s.update(ctx, deliveryID, true, func(d *domain.Delivery) error {
		if !d.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidTransition, d.Status, status)
		}
		d.Status = status
		d.UpdatedAt = at
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set status %s: %w", deliveryID, err)
	}
	return d, nil
}

// RecordLocation sets status and last location in a WATCH/MULTI
// transaction. The status must be reachable from the stored one.
func (s *DeliveryStore) RecordLocation(ctx context.Context, deliveryID string, status domain.DeliveryStatus, point domain.TrackingPoint, message string, at time.Time) error {
	_, err := s.update(ctx, deliveryID, false, func(d *domain.Delivery) error {
		if !d.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidTransition, d.Status, status)
		}
		d.Status = status
		d.LastLocation = &point
		d.LastMessage = message
		d.UpdatedAt = at
		return nil
	})
	if err != nil {
		return fmt.Errorf("record location %s: %w", deliveryID, err)
	}
	return nil
}

// update runs mutate on the stored delivery under WATCH and writes the
// result, retrying when a concurrent writer wins. With create, a missing
// delivery is mutated from a fresh PENDING record; otherwise it is
// domain.ErrDeliveryNotFound. Errors from mutate abort without writing.
func (s *DeliveryStore) update(ctx context.Context, deliveryID string, create bool, mutate func(d *domain.Delivery) error) (*domain.Delivery, error) {
	key := s.key(deliveryID)
	var out *domain.Delivery
	txf := func(tx *redis.Tx) error {
		var d *domain.Delivery
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil) && create:
			d = &domain.Delivery{ID: deliveryID, Status: domain.DeliveryPending}
		case errors.Is(err, redis.Nil):
			return domain.ErrDeliveryNotFound
		case err != nil:
			return err
		default:
			if d, err = decode(raw); err != nil {
				return err
			}
		}

		if err := mutate(d); err != nil {
			return err
		}
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			out = d
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, errors.New("too much contention")
}

func decode(raw []byte) (*domain.Delivery, error) {
	var d domain.Delivery
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode delivery: %w", err)
	}
	return &d, nil
}
