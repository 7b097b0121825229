package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// seed writes a delivery record as-is, bypassing transition checks.
func seed(t *testing.T, client *redis.Client, d domain.Delivery) {
	t.Helper()
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Set(context.Background(), "delivery:"+d.ID, data, 0).Err(); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// Connect
// ---------------------------------------------------------------------------

func TestConnect_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := Connect(context.Background(), Config{Addr: addr, Timeout: 200 * time.Millisecond}); err == nil {
		t.Fatal("expected ping error")
	}
}

// ---------------------------------------------------------------------------
// DedupChecker
// ---------------------------------------------------------------------------

func TestDedupChecker_MarkThenDuplicate(t *testing.T) {
	mr, client := newTestClient(t)
	d := NewDedupChecker(client, time.Minute)
	ctx := context.Background()
	ts := time.Date(2026, 3, 3, 10, 0, 0, 250_000_000, time.UTC)

	dup, err := d.IsDuplicate(ctx, "D-1", "IN_TRANSIT", ts)
	if err != nil || dup {
		t.Fatalf("fresh update reported duplicate: %v %v", dup, err)
	}
	if err := d.Mark(ctx, "D-1", "IN_TRANSIT", ts); err != nil {
		t.Fatal(err)
	}
	if dup, _ := d.IsDuplicate(ctx, "D-1", "IN_TRANSIT", ts); !dup {
		t.Error("expected duplicate after Mark")
	}
	if dup, _ := d.IsDuplicate(ctx, "D-1", "IN_TRANSIT", ts.Add(time.Millisecond)); dup {
		t.Error("a different timestamp is a different update")
	}

	mr.FastForward(2 * time.Minute)
	if dup, _ := d.IsDuplicate(ctx, "D-1", "IN_TRANSIT", ts); dup {
		t.Error("expected dedup key to expire")
	}
}

// ---------------------------------------------------------------------------
// DeliveryStore
// ---------------------------------------------------------------------------

func TestDeliveryStore_SetStatus(t *testing.T) {
	_, client := newTestClient(t)
	s := NewDeliveryStore(client, 0)
	ctx := context.Background()

	if _, err := s.Get(ctx, "D-1"); !errors.Is(err, domain.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	d, err := s.SetStatus(ctx, "D-1", domain.DeliveryAccepted, now)
	if err != nil {
		t.Fatalf("SetStatus on a new delivery: %v", err)
	}
	if d.Status != domain.DeliveryAccepted || d.ID != "D-1" {
		t.Errorf("unexpected result %+v", d)
	}
	got, err := s.Get(ctx, "D-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.DeliveryAccepted || !got.UpdatedAt.Equal(now) {
		t.Errorf("unexpected delivery %+v", got)
	}

	if _, err := s.SetStatus(ctx, "D-1", domain.DeliveryDelivered, now); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if got, _ := s.Get(ctx, "D-1"); got.Status != domain.DeliveryAccepted {
		t.Errorf("rejected transition was written: %s", got.Status)
	}
}

func TestDeliveryStore_RecordLocation(t *testing.T) {
	_, client := newTestClient(t)
	s := NewDeliveryStore(client, time.Hour)
	ctx := context.Background()

	point := domain.TrackingPoint{Latitude: 19.43, Longitude: -99.13, Accuracy: 8, Timestamp: time.Now().UTC()}
	if err := s.RecordLocation(ctx, "missing", domain.DeliveryInTransit, point, "m", time.Now()); !errors.Is(err, domain.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}

	seed(t, client, domain.Delivery{ID: "D-1", Status: domain.DeliveryAccepted})
	if err := s.RecordLocation(ctx, "D-1", domain.DeliveryInTransit, point, "Automatic location update", time.Now()); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, "D-1")
	if got.Status != domain.DeliveryInTransit || got.LastLocation == nil || got.LastLocation.Latitude != 19.43 {
		t.Errorf("location not recorded: %+v", got)
	}
	if got.LastMessage != "Automatic location update" {
		t.Errorf("message = %q", got.LastMessage)
	}
}

func TestDeliveryStore_ConcurrentRecordLocation(t *testing.T) {
	_, client := newTestClient(t)
	s := NewDeliveryStore(client, 0)
	ctx := context.Background()
	seed(t, client, domain.Delivery{ID: "D-1", Status: domain.DeliveryInTransit})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := domain.TrackingPoint{Latitude: float64(i), Timestamp: time.Now()}
			if err := s.RecordLocation(ctx, "D-1", domain.DeliveryInTransit, p, "", time.Now()); err != nil {
				t.Errorf("RecordLocation: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "D-1")
	if err != nil || got.LastLocation == nil {
		t.Fatalf("expected a recorded location, got %+v, %v", got, err)
	}
}

func TestDeliveryStore_RecordLocationKeepsFinishedDelivery(t *testing.T) {
	_, client := newTestClient(t)
	s := NewDeliveryStore(client, 0)
	ctx := context.Background()
	seed(t, client, domain.Delivery{ID: "D-1", Status: domain.DeliveryDelivered})

	p := domain.TrackingPoint{Latitude: 19.4, Timestamp: time.Now()}
	err := s.RecordLocation(ctx, "D-1", domain.DeliveryInTransit, p, "", time.Now())
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	got, _ := s.Get(ctx, "D-1")
	if got.Status != domain.DeliveryDelivered || got.LastLocation != nil {
		t.Fatalf("finished delivery was modified: %+v", got)
	}
}

func TestDeliveryStore_DeliveredWinsOverConcurrentLocations(t *testing.T) {
	_, client := newTestClient(t)
	s := NewDeliveryStore(client, 0)
	ctx := context.Background()
	seed(t, client, domain.Delivery{ID: "D-1", Status: domain.DeliveryInTransit})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 10; n++ {
				p := domain.TrackingPoint{Latitude: float64(i), Timestamp: time.Now()}
				err := s.RecordLocation(ctx, "D-1", domain.DeliveryInTransit, p, "", time.Now())
				if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
					t.Errorf("RecordLocation: %v", err)
				}
			}
		}(i)
	}
	if _, err := s.SetStatus(ctx, "D-1", domain.DeliveryDelivered, time.Now()); err != nil {
		t.Errorf("SetStatus: %v", err)
	}
	wg.Wait()

	got, err := s.Get(ctx, "D-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.DeliveryDelivered {
		t.Fatalf("delivered delivery moved back to %s", got.Status)
	}
}
