package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/acquisition"
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/tracking"
	"github.com/99minutos/courier-tracking/internal/core/transmit"
	"github.com/99minutos/courier-tracking/internal/metrics"
	"github.com/99minutos/courier-tracking/internal/pkg/eventloop"
)

// run is the state of one Start..Stop cycle. Every field below loop is owned
// by the loop goroutine.
type run struct {
	s    *Session
	id   string
	loop *eventloop.Loop
	log  zerolog.Logger
	now  func() time.Time

	base   context.Context
	ctx    context.Context
	cancel context.CancelFunc

	deliveryID      string
	dest            *domain.Coordinates
	filter          tracking.Filter
	history         *tracking.History
	controller      *acquisition.Controller
	tx              *transmit.Transmitter
	transmitTicker  *eventloop.Ticker
	pollTicker      *eventloop.Ticker
	polling         bool
	lastTransmitted *time.Time
}

func (s *Session) newRun(ctx context.Context, deliveryID string, dest *domain.Coordinates) (*run, error) {
	id := newSessionID()
	r := &run{
		s:          s,
		id:         id,
		now:        time.Now,
		base:       context.WithoutCancel(ctx),
		deliveryID: deliveryID,
		filter:     tracking.NewFilter(s.cfg.Filter),
		history:    tracking.NewHistory(s.cfg.HistoryCapacity),
		log: s.log.With().
			Str("session_id", id).
			Str("delivery_id", deliveryID).
			Logger(),
	}
	if dest != nil {
		d := *dest
		r.dest = &d
	}
	r.loop = eventloop.New(r.teardown)

	c, err := acquisition.New(s.cfg.Acquisition, s.sensor, r.loop, r.log.With().Str("component", "acquisition").Logger())
	if err != nil {
		return nil, err
	}
	r.controller = c
	return r, nil
}

// start runs on the loop.
func (r *run) start() error {
	r.ctx, r.cancel = context.WithCancel(r.base)
	r.tx = transmit.New(r.ctx, r.s.api, r.s.cfg.Transmit, r.log.With().Str("component", "transmitter").Logger())

	if err := r.controller.Start(r.ctx, r.deliveryID, r.callbacks()); err != nil {
		return err
	}
	r.transmitTicker = r.loop.Every(r.s.cfg.TransmitInterval, r.transmitLatest)
	r.pollTicker = r.loop.Every(r.s.cfg.StatusPollInterval, r.pollStatus)
	r.log.Info().Msg("tracking session started")
	return nil
}

// teardown runs on the loop after Quit; it releases everything the run owns.
func (r *run) teardown() {
	r.transmitTicker.Stop()
	r.pollTicker.Stop()
	r.controller.Stop()
	if r.tx != nil {
		r.tx.Close()
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.log.Info().Int("history", r.history.Len()).Int("history_capacity", r.history.Capacity()).Msg("tracking session stopped")
}

func (r *run) callbacks() acquisition.Callbacks {
	return acquisition.Callbacks{
		OnPosition:     r.onPosition,
		OnStatusChange: r.s.listener.OnStatusChange,
		OnError: func(change domain.StatusChange) {
			r.log.Warn().
				Str("state", change.State.String()).
				Str("reason", change.Reason).
				Msg("acquisition stopped, waiting for manual retry")
		},
	}
}

// onPosition is the only path into the history.
func (r *run) onPosition(p domain.Position) {
	last, ok := r.history.Last()
	var lastPtr *domain.Position
	if ok {
		lastPtr = &last
	}
	verdict := r.filter.Evaluate(p, lastPtr)
	metrics.PositionsTotal.WithLabelValues(string(verdict)).Inc()
	if verdict != tracking.Accepted {
		r.log.Debug().
			Str("verdict", string(verdict)).
			Float64("accuracy", p.AccuracyMeters).
			Msg("position rejected")
		return
	}

	r.history.Append(p)
	r.s.listener.OnPositionUpdate(p)
	r.transmit(p)
	r.publishETA()
}

func (r *run) transmit(p domain.Position) {
	r.tx.SendLatest(r.deliveryID, p, func(res transmit.Result) {
		if !res.Sent() {
			return
		}
		r.loop.Post(func() {
			at := res.At
			r.lastTransmitted = &at
		})
	})
}

// transmitLatest keeps the endpoint warm with the last retained position.
func (r *run) transmitLatest() {
	if p, ok := r.history.Last(); ok {
		r.transmit(p)
	}
}

func (r *run) pollStatus() {
	if r.polling {
		return
	}
	r.polling = true
	ctx, cancel := context.WithTimeout(r.ctx, r.s.cfg.StatusTimeout)
	go func() {
		defer cancel()
		status, err := r.s.api.DeliveryStatus(ctx, r.deliveryID)
		r.loop.Post(func() { r.onStatus(status, err) })
	}()
}

func (r *run) onStatus(status domain.DeliveryStatus, err error) {
	r.polling = false
	if err != nil {
		metrics.StatusPollsTotal.WithLabelValues("error").Inc()
		r.log.Warn().Err(err).Msg("delivery status poll failed")
		return
	}
	if !status.Terminal() {
		metrics.StatusPollsTotal.WithLabelValues("ok").Inc()
		return
	}
	metrics.StatusPollsTotal.WithLabelValues("terminal").Inc()
	r.log.Info().Str("status", string(status)).Msg("delivery finished, stopping session")
	r.loop.Quit()
}

func (r *run) estimate() (domain.ETAEstimate, error) {
	if r.dest == nil {
		return domain.ETAEstimate{}, domain.ErrNoDestination
	}
	return r.s.engine.ETA(r.history.All(), *r.dest, r.now())
}

func (r *run) publishETA() {
	if r.dest == nil || r.history.Len() == 0 {
		return
	}
	est, err := r.estimate()
	if err != nil {
		r.log.Debug().Err(err).Msg("estimate unavailable")
		return
	}
	metrics.ETAMinutes.Set(float64(est.EstimatedMinutes))
	metrics.ETAConfidence.Set(float64(est.ConfidencePercent))
	r.s.listener.OnETAUpdate(est)
}

func (r *run) retry() error {
	if !r.controller.State().Terminal() {
		return domain.ErrSessionActive
	}
	return r.controller.Start(r.ctx, r.deliveryID, r.callbacks())
}

func (r *run) snapshot() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		SessionID:  r.id,
		DeliveryID: r.deliveryID,
		State:      r.controller.State(),
		RetryCount: r.controller.RetryCount(),
		HistoryLen: r.history.Len(),
	}
	if r.lastTransmitted != nil {
		t := *r.lastTransmitted
		snap.LastTransmittedAt = &t
	}
	if p, ok := r.history.Last(); ok {
		snap.LastRetainedPosition = &p
	}
	if r.dest != nil {
		d := *r.dest
		snap.Destination = &d
	}
	return snap
}
