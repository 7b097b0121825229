// Package transmit sends retained positions to the remote tracking endpoint.
// Sends are asynchronous and retried with a bounded fixed-delay policy; a
// position that still fails after its retries is logged and dropped.
package transmit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
	"github.com/99minutos/courier-tracking/internal/metrics"
	"github.com/99minutos/courier-tracking/internal/pkg/retry"
)

// DefaultMessage is attached to every automatic update.
const DefaultMessage = "Automatic location update"

// Config parameterizes the transmitter.
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	Message    string
}

// DefaultConfig returns 3 retries 5 s apart.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, RetryDelay: 5 * time.Second, Message: DefaultMessage}
}

// Result reports the outcome of one SendLatest call.
type Result struct {
	Position domain.Position
	Attempts int
	Err      error
	At       time.Time
}

// Sent reports whether the position reached the endpoint.
func (r Result) Sent() bool {
	return r.Err == nil
}

// Transmitter owns the in-flight sends of one session.
type Transmitter struct {
	api     ports.TrackingAPI
	policy  retry.Policy
	message string
	log     zerolog.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// New returns a transmitter bound to ctx; cancelling ctx or calling Close
// aborts pending retries.
func New(ctx context.Context, api ports.TrackingAPI, cfg Config, log zerolog.Logger) *Transmitter {
	if cfg.Message == "" {
		cfg.Message = DefaultMessage
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Transmitter{
		api:     api,
		policy:  retry.Policy{MaxRetries: cfg.MaxRetries, Delay: cfg.RetryDelay},
		message: cfg.Message,
		log:     log,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SendLatest transmits p for deliveryID on its own goroutine with a fresh
// retry budget. done, when non-nil, receives the outcome on that goroutine.
// It reports false without sending once the transmitter is closed.
func (t *Transmitter) SendLatest(deliveryID string, p domain.Position, done func(Result)) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	update := t.update(deliveryID, p)
	go func() {
		defer t.wg.Done()
		res := t.send(update, p)
		if done != nil {
			done(res)
		}
	}()
	return true
}

func (t *Transmitter) send(update ports.TrackingUpdate, p domain.Position) Result {
	log := t.log.With().Str("delivery_id", update.DeliveryID).Logger()

	attempts, err := t.policy.Do(t.ctx, func(ctx context.Context, attempt int) error {
		metrics.TransmissionAttemptsTotal.Inc()
		return t.api.SendTracking(ctx, update)
	}, func(err error, attempt int, wait time.Duration) {
		log.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("transmission failed, retrying")
	})

	res := Result{Position: p, Attempts: attempts, Err: err, At: t.now()}
	if err != nil {
		metrics.TransmissionsTotal.WithLabelValues("dropped").Inc()
		// Non-fatal: acquisition continues regardless.
		log.Warn().Err(err).Int("attempts", attempts).Msg("position dropped after retries")
		return res
	}
	metrics.TransmissionsTotal.WithLabelValues("sent").Inc()
	log.Debug().Int("attempts", attempts).Msg("position transmitted")
	return res
}

func (t *Transmitter) update(deliveryID string, p domain.Position) ports.TrackingUpdate {
	return ports.TrackingUpdate{
		DeliveryID: deliveryID,
		Status:     domain.DeliveryInTransit,
		Message:    t.message,
		Location: ports.TrackingLocation{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Accuracy:  p.AccuracyMeters,
			Speed:     p.SpeedMetersPerSecond,
			Heading:   p.Heading,
			Timestamp: p.Timestamp,
		},
		IsAutomatic: true,
	}
}

// Close aborts pending retries and waits for every in-flight send to return.
// Idempotent.
func (t *Transmitter) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cancel()
	t.wg.Wait()
}
