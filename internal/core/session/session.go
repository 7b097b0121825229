// Package session orchestrates one delivery's tracking pipeline: acquisition,
// filtering, history, transmission, estimation and the delivery status poll.
//
// Each Start creates a run owning a cooperative event loop. Every state
// mutation and every listener callback happens on that loop; network calls
// run on their own goroutines and post their results back.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/acquisition"
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/estimation"
	"github.com/99minutos/courier-tracking/internal/core/ports"
	"github.com/99minutos/courier-tracking/internal/core/tracking"
	"github.com/99minutos/courier-tracking/internal/core/transmit"
	"github.com/99minutos/courier-tracking/internal/metrics"
)

// Config wires the pipeline components.
type Config struct {
	Acquisition        acquisition.Config
	Filter             tracking.FilterConfig
	HistoryCapacity    int
	Transmit           transmit.Config
	TransmitInterval   time.Duration
	StatusPollInterval time.Duration
	// StatusTimeout bounds a single delivery status request.
	StatusTimeout time.Duration
}

// DefaultConfig returns the production intervals: transmission and status
// poll every 15 s.
func DefaultConfig() Config {
	return Config{
		Acquisition:        acquisition.DefaultConfig(),
		Filter:             tracking.DefaultFilterConfig(),
		HistoryCapacity:    tracking.DefaultHistoryCapacity,
		Transmit:           transmit.DefaultConfig(),
		TransmitInterval:   15 * time.Second,
		StatusPollInterval: 15 * time.Second,
		StatusTimeout:      10 * time.Second,
	}
}

// Session is the public handle of the tracking pipeline. It runs at most one
// delivery at a time; Start and Stop may be called from any goroutine.
type Session struct {
	cfg      Config
	sensor   ports.LocationSensor
	api      ports.TrackingAPI
	engine   estimation.Engine
	listener ports.SessionListener
	log      zerolog.Logger

	mu  sync.Mutex
	cur *run
}

// New builds a session. listener may be nil.
func New(cfg Config, sensor ports.LocationSensor, api ports.TrackingAPI, engine estimation.Engine, listener ports.SessionListener, log zerolog.Logger) *Session {
	d := DefaultConfig()
	if cfg.TransmitInterval <= 0 {
		cfg.TransmitInterval = d.TransmitInterval
	}
	if cfg.StatusPollInterval <= 0 {
		cfg.StatusPollInterval = d.StatusPollInterval
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = d.StatusTimeout
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = d.HistoryCapacity
	}
	if listener == nil {
		listener = ports.ListenerFuncs{}
	}
	return &Session{
		cfg:      cfg,
		sensor:   sensor,
		api:      api,
		engine:   engine,
		listener: listener,
		log:      log,
	}
}

func (s *Session) current() *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Start begins tracking deliveryID. dest may be nil; estimates are produced
// once a destination is known. It fails with domain.ErrSessionActive while a
// run is in progress.
func (s *Session) Start(ctx context.Context, deliveryID string, dest *domain.Coordinates) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := s.newRun(ctx, deliveryID, dest)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.cur != nil {
		s.mu.Unlock()
		return domain.ErrSessionActive
	}
	s.cur = r
	metrics.ActiveSessions.Inc()
	s.mu.Unlock()

	var startErr error
	r.loop.Start()
	r.loop.Call(func() { startErr = r.start() })
	if startErr != nil {
		r.loop.Quit()
		r.loop.Wait()
		s.detach(r)
		return startErr
	}

	// A run may also end from its own loop (terminal delivery status).
	go func() {
		<-r.loop.Done()
		s.detach(r)
	}()
	return nil
}

// Stop ends the current run. When it returns the sensor subscription, both
// tickers and every pending timer are released and no listener callback
// fires any more. Idempotent. Called from a listener callback, Stop only
// requests the shutdown and returns; teardown follows the callback.
func (s *Session) Stop() {
	r := s.current()
	if r == nil {
		return
	}
	r.loop.Quit()
	if r.loop.OnLoop() {
		return
	}
	r.loop.Wait()
	s.detach(r)
}

// detach clears r as the current run once its loop has exited.
func (s *Session) detach(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == r {
		s.cur = nil
		metrics.ActiveSessions.Dec()
	}
}

// Active reports whether a run is in progress.
func (s *Session) Active() bool {
	return s.current() != nil
}

// Done returns a channel closed when the current run ends, whether by Stop,
// a terminal delivery status or the host shutting down. Without a run the
// channel is already closed.
func (s *Session) Done() <-chan struct{} {
	if r := s.current(); r != nil {
		return r.loop.Done()
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// onLoop runs fn on the current run's loop and waits for it. From a listener
// callback fn runs inline.
func (s *Session) onLoop(fn func(r *run)) error {
	r := s.current()
	if r == nil {
		return domain.ErrSessionInactive
	}
	if !r.loop.Call(func() { fn(r) }) {
		return domain.ErrSessionInactive
	}
	return nil
}

// ETA recomputes the arrival estimate from the current history.
func (s *Session) ETA() (domain.ETAEstimate, error) {
	var est domain.ETAEstimate
	var err error
	if lerr := s.onLoop(func(r *run) { est, err = r.estimate() }); lerr != nil {
		return domain.ETAEstimate{}, lerr
	}
	return est, err
}

// IsNear reports whether the last retained position is within
// thresholdMeters of the destination, boundary inclusive. A non-positive
// threshold uses the configured arrival threshold.
func (s *Session) IsNear(thresholdMeters float64) (bool, error) {
	var near bool
	var err error
	lerr := s.onLoop(func(r *run) {
		if r.dest == nil {
			err = domain.ErrNoDestination
			return
		}
		near = s.engine.IsNear(r.history.All(), *r.dest, thresholdMeters)
	})
	if lerr != nil {
		return false, lerr
	}
	return near, err
}

// SetDestination replaces the destination and, when a position is retained,
// publishes a fresh estimate.
func (s *Session) SetDestination(dest domain.Coordinates) error {
	return s.onLoop(func(r *run) {
		r.dest = &dest
		r.publishETA()
	})
}

// Retry restarts acquisition from the first tier after it reached TimedOut
// or Error.
func (s *Session) Retry() error {
	var err error
	if lerr := s.onLoop(func(r *run) { err = r.retry() }); lerr != nil {
		return lerr
	}
	return err
}

// Snapshot returns the observable state of the current run.
func (s *Session) Snapshot() (domain.SessionSnapshot, error) {
	var snap domain.SessionSnapshot
	if err := s.onLoop(func(r *run) { snap = r.snapshot() }); err != nil {
		return domain.SessionSnapshot{}, err
	}
	return snap, nil
}

func newSessionID() string {
	return uuid.NewString()
}
