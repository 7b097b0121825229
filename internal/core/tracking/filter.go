// Package tracking holds the position filter and the bounded history it feeds.
package tracking

import (
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/estimation"
)

// Verdict is the outcome of filtering one reading.
type Verdict string

const (
	Accepted         Verdict = "accepted"
	RejectedAccuracy Verdict = "rejected_accuracy"
	RejectedNoise    Verdict = "rejected_noise"
	RejectedInvalid  Verdict = "rejected_invalid"
)

// FilterConfig holds the acceptance thresholds.
type FilterConfig struct {
	// MaxAccuracyMeters rejects readings with a larger accuracy radius.
	MaxAccuracyMeters float64
	// MinMovementMeters rejects readings closer than this to the last
	// retained position (GPS jitter suppression).
	MinMovementMeters float64
}

// DefaultFilterConfig returns the 100 m accuracy / 5 m movement thresholds.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{MaxAccuracyMeters: 100, MinMovementMeters: 5}
}

// Filter decides which readings enter the history. It is deterministic and
// has no side effects.
type Filter struct {
	cfg FilterConfig
}

func NewFilter(cfg FilterConfig) Filter {
	d := DefaultFilterConfig()
	if cfg.MaxAccuracyMeters <= 0 {
		cfg.MaxAccuracyMeters = d.MaxAccuracyMeters
	}
	if cfg.MinMovementMeters < 0 {
		cfg.MinMovementMeters = d.MinMovementMeters
	}
	return Filter{cfg: cfg}
}

// Evaluate classifies candidate against the last retained position, if any.
func (f Filter) Evaluate(candidate domain.Position, lastRetained *domain.Position) Verdict {
	if !candidate.Valid() {
		return RejectedInvalid
	}
	if candidate.AccuracyMeters > f.cfg.MaxAccuracyMeters {
		return RejectedAccuracy
	}
	if lastRetained != nil && estimation.PositionDistance(candidate, *lastRetained) < f.cfg.MinMovementMeters {
		return RejectedNoise
	}
	return Accepted
}

// Accept reports whether candidate should be retained.
func (f Filter) Accept(candidate domain.Position, lastRetained *domain.Position) bool {
	return f.Evaluate(candidate, lastRetained) == Accepted
}
