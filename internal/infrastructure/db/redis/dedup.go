package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDedupTTL = 24 * time.Hour

// DedupChecker provides idempotency checks backed by Redis so a position
// retransmitted by a retry is stored once.
// Key format: dedup:<delivery_id>:<status>:<unix_millis>
type DedupChecker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedupChecker creates a DedupChecker wrapping the given Redis client.
// A non-positive ttl uses 24 h.
func NewDedupChecker(client *redis.Client, ttl time.Duration) *DedupChecker {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &DedupChecker{client: client, ttl: ttl}
}

// IsDuplicate reports whether this exact update has already been processed.
func (d *DedupChecker) IsDuplicate(ctx context.Context, deliveryID, status string, ts time.Time) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(deliveryID, status, ts)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that this update has been processed.
func (d *DedupChecker) Mark(ctx context.Context, deliveryID, status string, ts time.Time) error {
	return d.client.Set(ctx, d.key(deliveryID, status, ts), "1", d.ttl).Err()
}

func (d *DedupChecker) key(deliveryID, status string, ts time.Time) string {
	return fmt.Sprintf("dedup:%s:%s:%d", deliveryID, status, ts.UnixMilli())
}
