// Package sensor provides LocationSensor implementations that do not depend
// on device hardware: a deterministic scripted sensor for tests and a replay
// sensor that plays back a recorded GeoJSON track.
package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

// Step is one scripted sensor outcome: a position or an error, delivered
// after Delay.
type Step struct {
	Position domain.Position
	Err      error
	Delay    time.Duration
}

// Fix returns a successful step.
func Fix(p domain.Position) Step {
	return Step{Position: p}
}

// Fail returns a failing step.
func Fail(err error) Step {
	return Step{Err: err}
}

// ScriptedSensor replays queued steps. AcquireOnce consumes one acquire step
// per call and blocks until ctx is done when none is queued. Each Watch call
// consumes one queued watch script and delivers its steps in order; a watch
// without a script stays silent.
type ScriptedSensor struct {
	mu           sync.Mutex
	acquire      []Step
	watches      [][]Step
	watchErr     []error
	acquireCalls []ports.SensorOptions
	watchCalls   []ports.SensorOptions
	open         map[ports.WatchID]chan struct{}
	nextID       ports.WatchID
	active       int
	maxActive    int
}

// NewScripted returns an empty scripted sensor.
func NewScripted() *ScriptedSensor {
	return &ScriptedSensor{open: make(map[ports.WatchID]chan struct{})}
}

// QueueAcquire appends outcomes for subsequent AcquireOnce calls.
func (s *ScriptedSensor) QueueAcquire(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquire = append(s.acquire, steps...)
}

// QueueWatch appends the script of the next Watch call.
func (s *ScriptedSensor) QueueWatch(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watches = append(s.watches, steps)
	s.watchErr = append(s.watchErr, nil)
}

// QueueWatchError makes the next Watch call fail to subscribe.
func (s *ScriptedSensor) QueueWatchError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watches = append(s.watches, nil)
	s.watchErr = append(s.watchErr, err)
}

func (s *ScriptedSensor) enter() {
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
}

func (s *ScriptedSensor) AcquireOnce(ctx context.Context, opts ports.SensorOptions) (domain.Position, error) {
	s.mu.Lock()
	s.acquireCalls = append(s.acquireCalls, opts)
	s.enter()
	var step *Step
	if len(s.acquire) > 0 {
		st := s.acquire[0]
		s.acquire = s.acquire[1:]
		step = &st
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if step == nil {
		<-ctx.Done()
		return domain.Position{}, fmt.Errorf("scripted acquire: %w", domain.ErrSensorTimeout)
	}
	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return domain.Position{}, fmt.Errorf("scripted acquire: %w", domain.ErrSensorTimeout)
		}
	}
	if step.Err != nil {
		return domain.Position{}, step.Err
	}
	return step.Position, nil
}

func (s *ScriptedSensor) Watch(opts ports.SensorOptions, sink func(ports.SensorReading)) (ports.WatchID, error) {
	s.mu.Lock()
	s.watchCalls = append(s.watchCalls, opts)
	var script []Step
	var err error
	if len(s.watches) > 0 {
		script, err = s.watches[0], s.watchErr[0]
		s.watches, s.watchErr = s.watches[1:], s.watchErr[1:]
	}
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.nextID++
	id := s.nextID
	stop := make(chan struct{})
	s.open[id] = stop
	s.enter()
	s.mu.Unlock()

	go func() {
		for _, st := range script {
			select {
			case <-stop:
				return
			case <-time.After(st.Delay):
			}
			select {
			case <-stop:
				return
			default:
			}
			sink(ports.SensorReading{Watch: id, Position: st.Position, Err: st.Err})
		}
	}()
	return id, nil
}

func (s *ScriptedSensor) CancelWatch(id ports.WatchID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.open[id]; ok {
		close(stop)
		delete(s.open, id)
		s.active--
	}
}

// AcquireCalls returns the options of every AcquireOnce call so far.
func (s *ScriptedSensor) AcquireCalls() []ports.SensorOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.SensorOptions(nil), s.acquireCalls...)
}

// WatchCalls returns the options of every Watch call so far.
func (s *ScriptedSensor) WatchCalls() []ports.SensorOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.SensorOptions(nil), s.watchCalls...)
}

// OpenWatches returns the number of subscriptions not yet cancelled.
func (s *ScriptedSensor) OpenWatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// MaxConcurrent returns the highest number of simultaneously running
// acquisitions and watches observed.
func (s *ScriptedSensor) MaxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}
