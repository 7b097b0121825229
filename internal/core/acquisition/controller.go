// Package acquisition owns the location sensor subscription of a tracking
// session. It is a state machine driven from the session loop:
//
//	Inactive → Requesting → Active|Degraded ⇄ Requesting (next tier) … → TimedOut|Error
//
// Every exported method except New must be called on the loop goroutine.
package acquisition

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
	"github.com/99minutos/courier-tracking/internal/metrics"
	"github.com/99minutos/courier-tracking/internal/pkg/eventloop"
	"github.com/99minutos/courier-tracking/internal/pkg/retry"
)

// Config parameterizes the controller.
type Config struct {
	Tiers []Tier
	// RetryDelay is the fixed wait before retrying with the next attempt.
	RetryDelay time.Duration
	// ActiveAccuracyMeters is the worst accuracy still classified Active;
	// anything above is Degraded.
	ActiveAccuracyMeters float64
}

// DefaultConfig returns the default tiers, a 3 s retry delay and the 50 m
// Active threshold.
func DefaultConfig() Config {
	return Config{
		Tiers:                DefaultTiers(),
		RetryDelay:           3 * time.Second,
		ActiveAccuracyMeters: 50,
	}
}

// Callbacks receive controller output. They run on the loop goroutine.
type Callbacks struct {
	OnPosition     func(domain.Position)
	OnStatusChange func(domain.StatusChange)
	OnError        func(domain.StatusChange)
}

// Controller supervises one sensor subscription at a time.
type Controller struct {
	cfg    Config
	plan   plan
	sensor ports.LocationSensor
	loop   *eventloop.Loop
	log    zerolog.Logger
	now    func() time.Time

	ctx        context.Context
	deliveryID string
	cb         Callbacks
	state      domain.AcquisitionState
	tier       Tier
	budget     *retry.Budget

	// gen invalidates completions from a superseded tier activation.
	gen           uint64
	watch         ports.WatchID
	watching      bool
	cancelAcquire context.CancelFunc
	watchdog      *eventloop.Timer
	retryTimer    *eventloop.Timer
}

// New builds a controller posting its asynchronous work to loop.
func New(cfg Config, sensor ports.LocationSensor, loop *eventloop.Loop, log zerolog.Logger) (*Controller, error) {
	if cfg.ActiveAccuracyMeters <= 0 {
		cfg.ActiveAccuracyMeters = DefaultConfig().ActiveAccuracyMeters
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	p, err := newPlan(cfg.Tiers)
	if err != nil {
		return nil, err
	}
	return &Controller{
		cfg:    cfg,
		plan:   p,
		sensor: sensor,
		loop:   loop,
		log:    log,
		now:    time.Now,
		state:  domain.StateInactive,
		budget: retry.Policy{MaxRetries: p.retries(), Delay: cfg.RetryDelay}.Budget(),
	}, nil
}

// State returns the current state.
func (c *Controller) State() domain.AcquisitionState {
	return c.state
}

// RetryCount returns the retries consumed since the last successful reading.
func (c *Controller) RetryCount() int {
	return c.budget.Used()
}

// Tier returns the tier of the current or pending attempt.
func (c *Controller) Tier() Tier {
	return c.tier
}

// Start begins acquisition with the first tier. It fails if acquisition is
// already running; a controller in a terminal state may be started again.
func (c *Controller) Start(ctx context.Context, deliveryID string, cb Callbacks) error {
	if c.state != domain.StateInactive && !c.state.Terminal() {
		return domain.ErrSessionActive
	}
	c.ctx = ctx
	c.deliveryID = deliveryID
	c.cb = cb
	c.budget.Reset()
	c.state = domain.StateInactive
	c.activate(c.plan.at(0), nil)
	return nil
}

// Stop releases the subscription and every timer. Idempotent.
func (c *Controller) Stop() {
	c.gen++
	c.releaseTier()
	c.retryTimer.Stop()
	c.retryTimer = nil
	if c.state == domain.StateInactive {
		return
	}
	c.setState(domain.StateInactive, nil, nil)
}

// activate starts an attempt on t: a bounded one-shot acquisition, then a
// continuous watch once it succeeds.
func (c *Controller) activate(t Tier, cause error) {
	c.releaseTier()
	c.gen++
	gen := c.gen
	c.tier = t

	if c.state != domain.StateRequesting {
		c.setState(domain.StateRequesting, cause, nil)
	}

	c.log.Debug().
		Str("delivery_id", c.deliveryID).
		Str("tier", t.Name).
		Int("retry", c.budget.Used()).
		Msg("acquiring position")

	ctx, cancel := context.WithTimeout(c.ctx, t.Timeout)
	c.cancelAcquire = cancel
	opts := t.Options()
	go func() {
		p, err := c.sensor.AcquireOnce(ctx, opts)
		cancel()
		c.loop.Post(func() {
			if gen != c.gen {
				return
			}
			c.cancelAcquire = nil
			if err != nil {
				c.fail(err)
				return
			}
			c.accept(p)
			if gen == c.gen {
				c.startWatch(gen)
			}
		})
	}()
}

func (c *Controller) startWatch(gen uint64) {
	id, err := c.sensor.Watch(c.tier.Options(), func(r ports.SensorReading) {
		c.loop.Post(func() { c.onReading(gen, r) })
	})
	if err != nil {
		c.fail(err)
		return
	}
	c.watch = id
	c.watching = true
	c.armWatchdog(gen)
}

func (c *Controller) onReading(gen uint64, r ports.SensorReading) {
	if gen != c.gen || !c.watching || r.Watch != c.watch {
		return
	}
	if r.Err != nil {
		c.fail(r.Err)
		return
	}
	c.armWatchdog(gen)
	c.accept(r.Position)
}

// armWatchdog turns reading silence longer than the tier timeout into a
// timeout error.
func (c *Controller) armWatchdog(gen uint64) {
	c.watchdog.Stop()
	c.watchdog = c.loop.After(c.tier.Timeout, func() {
		if gen != c.gen {
			return
		}
		c.fail(fmt.Errorf("watch %s: no reading within %s: %w", c.tier.Name, c.tier.Timeout, domain.ErrSensorTimeout))
	})
}

// accept handles a successful reading: the retry counter resets and the
// state follows the reading's accuracy.
func (c *Controller) accept(p domain.Position) {
	c.budget.Reset()
	state := domain.StateDegraded
	if p.AccuracyMeters <= c.cfg.ActiveAccuracyMeters {
		state = domain.StateActive
	}
	acc := p.AccuracyMeters
	c.setState(state, nil, &acc)
	if c.cb.OnPosition != nil {
		c.cb.OnPosition(p)
	}
}

// fail applies the fallback policy to a sensor error.
func (c *Controller) fail(err error) {
	c.releaseTier()
	log := c.log.With().
		Str("delivery_id", c.deliveryID).
		Str("tier", c.tier.Name).
		Err(err).
		Logger()

	if domain.ClassifySensorError(err) == domain.ClassFatal {
		log.Error().Msg("fatal sensor error")
		c.terminate(domain.StateError, err)
		return
	}

	delay, ok := c.budget.Next()
	if !ok {
		state := domain.StateError
		if domain.IsSensorTimeout(err) {
			state = domain.StateTimedOut
		}
		log.Error().Int("retry", c.budget.Used()).Msg("acquisition retries exhausted")
		c.terminate(state, err)
		return
	}

	next := c.plan.at(c.budget.Used())
	metrics.AcquisitionRetriesTotal.WithLabelValues(next.Name).Inc()
	log.Warn().
		Int("retry", c.budget.Used()).
		Int("remaining", c.budget.Remaining()).
		Str("next_tier", next.Name).
		Dur("delay", delay).
		Msg("sensor error, retrying")

	c.tier = next
	c.setState(domain.StateRequesting, err, nil)

	gen := c.gen
	c.retryTimer = c.loop.After(delay, func() {
		if gen != c.gen {
			return
		}
		c.retryTimer = nil
		c.activate(next, err)
	})
}

func (c *Controller) terminate(state domain.AcquisitionState, err error) {
	c.gen++
	c.retryTimer.Stop()
	c.retryTimer = nil
	metrics.AcquisitionTerminalTotal.WithLabelValues(state.String()).Inc()
	change := c.setState(state, err, nil)
	if c.cb.OnError != nil {
		c.cb.OnError(change)
	}
}

// releaseTier cancels the in-flight acquisition, the watch and the watchdog.
func (c *Controller) releaseTier() {
	if c.cancelAcquire != nil {
		c.cancelAcquire()
		c.cancelAcquire = nil
	}
	if c.watching {
		c.sensor.CancelWatch(c.watch)
		c.watching = false
	}
	c.watchdog.Stop()
	c.watchdog = nil
}

func (c *Controller) setState(state domain.AcquisitionState, err error, accuracy *float64) domain.StatusChange {
	if state != c.state {
		c.log.Info().
			Str("delivery_id", c.deliveryID).
			Str("from", c.state.String()).
			Str("to", state.String()).
			Str("tier", c.tier.Name).
			Msg("acquisition state changed")
	}
	c.state = state
	change := domain.StatusChange{
		State:          state,
		Tier:           c.tier.Name,
		RetryCount:     c.budget.Used(),
		Err:            err,
		Reason:         domain.SensorErrorReason(err),
		AccuracyMeters: accuracy,
		At:             c.now(),
	}
	if c.cb.OnStatusChange != nil {
		c.cb.OnStatusChange(change)
	}
	return change
}
