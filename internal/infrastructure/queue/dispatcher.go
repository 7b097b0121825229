package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/ports"
	"github.com/99minutos/courier-tracking/internal/metrics"
)

const (
	defaultWorkers = 8
	defaultBuffer  = 256
)

// Dispatcher routes tracking updates to a fixed set of workers using
// consistent hashing on the delivery ID, guaranteeing per-delivery ordering.
type Dispatcher struct {
	workers []chan ports.TrackingEventInput
	service ports.IngestService
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers, each
// buffering up to buffer updates. Non-positive values use the defaults.
func NewDispatcher(numWorkers, buffer int, service ports.IngestService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	d := &Dispatcher{
		workers: make([]chan ports.TrackingEventInput, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.TrackingEventInput, buffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends an update to the worker responsible for its delivery.
// The call is non-blocking up to the buffer capacity.
func (d *Dispatcher) Enqueue(event ports.TrackingEventInput) {
	idx := d.shardIndex(event.DeliveryID)
	d.workers[idx] <- event
	metrics.IngestQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
}

// shardIndex maps a delivery ID deterministically to a worker index.
func (d *Dispatcher) shardIndex(deliveryID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deliveryID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.TrackingEventInput) {
	depth := metrics.IngestQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			depth.Set(float64(len(ch)))
			if err := d.service.Process(ctx, event); err != nil {
				d.log.Error().Err(err).
					Str("delivery_id", event.DeliveryID).
					Int("worker_id", id).
					Msg("tracking update processing failed")
			}
		}
	}
}
