package sensor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

// TrackPoint is one recorded fix of a replayed track.
type TrackPoint struct {
	Point    orb.Point
	Accuracy float64
	Speed    *float64
	Heading  *float64
}

// ParseTrack reads a GeoJSON FeatureCollection. Point features become one fix
// each and may carry "accuracy", "speed" (m/s) and "heading" properties;
// LineString and MultiPoint features contribute one fix per vertex using the
// feature's properties. Features keep file order.
func ParseTrack(data []byte, defaultAccuracy float64) ([]TrackPoint, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse track: %w", err)
	}
	var out []TrackPoint
	for i, f := range fc.Features {
		acc := f.Properties.MustFloat64("accuracy", defaultAccuracy)
		var speed, heading *float64
		if v, ok := f.Properties["speed"].(float64); ok {
			speed = domain.Float(v)
		}
		if v, ok := f.Properties["heading"].(float64); ok {
			heading = domain.Float(v)
		}
		add := func(p orb.Point) {
			out = append(out, TrackPoint{Point: p, Accuracy: acc, Speed: speed, Heading: heading})
		}
		switch g := f.Geometry.(type) {
		case orb.Point:
			add(g)
		case orb.LineString:
			for _, p := range g {
				add(p)
			}
		case orb.MultiPoint:
			for _, p := range g {
				add(p)
			}
		default:
			return nil, fmt.Errorf("parse track: feature %d: unsupported geometry %s", i, f.Geometry.GeoJSONType())
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parse track: no points")
	}
	return out, nil
}

// LoadTrack reads a GeoJSON track file.
func LoadTrack(path string, defaultAccuracy float64) ([]TrackPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load track %s: %w", path, err)
	}
	return ParseTrack(data, defaultAccuracy)
}

// ReplayConfig controls playback pacing.
type ReplayConfig struct {
	// Interval between watch emissions.
	Interval time.Duration
	// Loop restarts the track from the beginning once exhausted.
	Loop bool
}

// ReplaySensor plays a recorded track back as live readings stamped with the
// current time. Once the track is exhausted without Loop it reports
// domain.ErrPositionUnavailable.
type ReplaySensor struct {
	cfg    ReplayConfig
	points []TrackPoint
	now    func() time.Time

	mu      sync.Mutex
	cursor  int
	nextID  ports.WatchID
	watches map[ports.WatchID]chan struct{}
}

// NewReplay returns a sensor replaying points.
func NewReplay(points []TrackPoint, cfg ReplayConfig) *ReplaySensor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &ReplaySensor{
		cfg:     cfg,
		points:  points,
		now:     time.Now,
		watches: make(map[ports.WatchID]chan struct{}),
	}
}

// next advances the cursor.
func (r *ReplaySensor) next() (domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.points) {
		if !r.cfg.Loop || len(r.points) == 0 {
			return domain.Position{}, fmt.Errorf("replay: track exhausted: %w", domain.ErrPositionUnavailable)
		}
		r.cursor = 0
	}
	tp := r.points[r.cursor]
	r.cursor++
	return domain.Position{
		Latitude:             tp.Point.Lat(),
		Longitude:            tp.Point.Lon(),
		AccuracyMeters:       tp.Accuracy,
		SpeedMetersPerSecond: tp.Speed,
		Heading:              tp.Heading,
		Timestamp:            r.now(),
	}, nil
}

func (r *ReplaySensor) AcquireOnce(ctx context.Context, _ ports.SensorOptions) (domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return domain.Position{}, fmt.Errorf("replay acquire: %w", domain.ErrSensorTimeout)
	}
	return r.next()
}

func (r *ReplaySensor) Watch(_ ports.SensorOptions, sink func(ports.SensorReading)) (ports.WatchID, error) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	stop := make(chan struct{})
	r.watches[id] = stop
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			p, err := r.next()
			select {
			case <-stop:
				return
			default:
			}
			sink(ports.SensorReading{Watch: id, Position: p, Err: err})
			if err != nil {
				return
			}
		}
	}()
	return id, nil
}

func (r *ReplaySensor) CancelWatch(id ports.WatchID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stop, ok := r.watches[id]; ok {
		close(stop)
		delete(r.watches, id)
	}
}
