// Package estimation computes arrival estimates from a position history.
// Every function is pure: results depend only on the arguments and the
// Params the Engine was built with.
package estimation

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// Params holds the heuristic constants of the estimate. RouteFactor and the
// traffic table have no documented derivation and are kept overridable.
type Params struct {
	RouteFactor            float64
	DefaultSpeedKmh        float64
	MaxReportedSpeedKmh    float64
	NoiseSpeedKmh          float64
	SpeedWindow            int
	ArrivalThresholdMeters float64

	AccuracyBaselineMeters   float64
	AccuracyPenaltyPerMeter  float64
	MaxAccuracyPenalty       float64
	ShallowHistoryLen        int
	ShallowHistoryPenalty    float64
	SpeedStdDevPenaltyPerKmh float64
	MaxSpeedStdDevPenalty    float64
	MinConfidence            int

	Traffic TrafficTable
	// Location is the time zone used for traffic bands. Nil keeps the zone
	// of the time passed to ETA.
	Location *time.Location
}

// DefaultParams returns the production constants.
func DefaultParams() Params {
	return Params{
		RouteFactor:            1.3,
		DefaultSpeedKmh:        30,
		MaxReportedSpeedKmh:    50,
		NoiseSpeedKmh:          100,
		SpeedWindow:            5,
		ArrivalThresholdMeters: 100,

		AccuracyBaselineMeters:   20,
		AccuracyPenaltyPerMeter:  0.5,
		MaxAccuracyPenalty:       30,
		ShallowHistoryLen:        3,
		ShallowHistoryPenalty:    20,
		SpeedStdDevPenaltyPerKmh: 1,
		MaxSpeedStdDevPenalty:    25,
		MinConfidence:            10,

		Traffic: DefaultTrafficTable(),
	}
}

// Engine evaluates Params against a history. The zero value is not usable;
// build one with New.
type Engine struct {
	p Params
}

// New returns an Engine. Non-positive constants fall back to DefaultParams.
func New(p Params) Engine {
	d := DefaultParams()
	if p.RouteFactor <= 0 {
		p.RouteFactor = d.RouteFactor
	}
	if p.DefaultSpeedKmh <= 0 {
		p.DefaultSpeedKmh = d.DefaultSpeedKmh
	}
	if p.MaxReportedSpeedKmh <= 0 {
		p.MaxReportedSpeedKmh = d.MaxReportedSpeedKmh
	}
	if p.NoiseSpeedKmh <= 0 {
		p.NoiseSpeedKmh = d.NoiseSpeedKmh
	}
	if p.SpeedWindow < 2 {
		p.SpeedWindow = d.SpeedWindow
	}
	if p.ArrivalThresholdMeters <= 0 {
		p.ArrivalThresholdMeters = d.ArrivalThresholdMeters
	}
	if p.MinConfidence <= 0 {
		p.MinConfidence = d.MinConfidence
	}
	if p.Traffic.Default <= 0 && len(p.Traffic.Bands) == 0 {
		p.Traffic = d.Traffic
	}
	return Engine{p: p}
}

// Params returns the effective constants.
func (e Engine) Params() Params {
	return e.p
}

// SampleSpeeds returns pairwise speeds in km/h over the last SpeedWindow
// entries, dropping pairs at or above NoiseSpeedKmh and pairs without a
// positive time delta.
func (e Engine) SampleSpeeds(history []domain.Position) []float64 {
	window := history
	if len(window) > e.p.SpeedWindow {
		window = window[len(window)-e.p.SpeedWindow:]
	}
	speeds := make([]float64, 0, len(window))
	for i := 1; i < len(window); i++ {
		dt := window[i].Timestamp.Sub(window[i-1].Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		kmh := PositionDistance(window[i-1], window[i]) / dt * 3.6
		if kmh >= e.p.NoiseSpeedKmh {
			continue
		}
		speeds = append(speeds, kmh)
	}
	return speeds
}

// EstimateSpeed picks the speed used for the ETA, in priority order: mean of
// recent sample speeds, last reported speed capped at MaxReportedSpeedKmh,
// then DefaultSpeedKmh.
func (e Engine) EstimateSpeed(history []domain.Position) (float64, domain.SpeedSource) {
	if samples := e.SampleSpeeds(history); len(samples) > 0 {
		if mean := stat.Mean(samples, nil); mean > 0 {
			return mean, domain.SpeedFromHistory
		}
	}
	if n := len(history); n > 0 {
		if kmh, ok := history[n-1].SpeedKmh(); ok && kmh > 0 {
			return math.Min(kmh, e.p.MaxReportedSpeedKmh), domain.SpeedFromReported
		}
	}
	return e.p.DefaultSpeedKmh, domain.SpeedFromDefault
}

// TrafficFactor returns the multiplier for now in the configured zone.
func (e Engine) TrafficFactor(now time.Time) float64 {
	if e.p.Location != nil {
		now = now.In(e.p.Location)
	}
	f, _ := e.p.Traffic.FactorAt(now)
	return f
}

// Confidence scores trust in an estimate from 10 to 100.
func (e Engine) Confidence(history []domain.Position) int {
	score := 100.0
	if n := len(history); n > 0 {
		if over := history[n-1].AccuracyMeters - e.p.AccuracyBaselineMeters; over > 0 {
			score -= math.Min(e.p.MaxAccuracyPenalty, over*e.p.AccuracyPenaltyPerMeter)
		}
	}
	if len(history) < e.p.ShallowHistoryLen {
		score -= e.p.ShallowHistoryPenalty
	}
	if samples := e.SampleSpeeds(history); len(samples) >= 2 {
		sd := stat.StdDev(samples, nil)
		score -= math.Min(e.p.MaxSpeedStdDevPenalty, sd*e.p.SpeedStdDevPenaltyPerKmh)
	}
	return clamp(int(math.Round(score)), e.p.MinConfidence, 100)
}

// ETA estimates arrival at dest from the last entry of history.
func (e Engine) ETA(history []domain.Position, dest domain.Coordinates, now time.Time) (domain.ETAEstimate, error) {
	if len(history) == 0 {
		return domain.ETAEstimate{}, domain.ErrNoPosition
	}
	last := history[len(history)-1]

	distance := Distance(last.Coordinates(), dest)
	corrected := distance * e.p.RouteFactor
	speed, source := e.EstimateSpeed(history)
	traffic := e.TrafficFactor(now)

	minutes := (corrected / 1000) / ((speed * traffic) / 60)
	rounded := int(math.Round(minutes))

	return domain.ETAEstimate{
		EstimatedMinutes:        rounded,
		EstimatedArrival:        now.Add(time.Duration(minutes * float64(time.Minute))),
		ConfidencePercent:       e.Confidence(history),
		DistanceMeters:          distance,
		CorrectedDistanceMeters: corrected,
		TrafficFactor:           traffic,
		SpeedKmh:                speed,
		SpeedSource:             source,
		NearDestination:         distance <= e.p.ArrivalThresholdMeters,
		ComputedAt:              now,
	}, nil
}

// IsNear reports whether the last entry of history is within thresholdMeters
// of dest, boundary inclusive. A non-positive threshold uses the configured
// arrival threshold.
func (e Engine) IsNear(history []domain.Position, dest domain.Coordinates, thresholdMeters float64) bool {
	if len(history) == 0 {
		return false
	}
	if thresholdMeters <= 0 {
		thresholdMeters = e.p.ArrivalThresholdMeters
	}
	return Distance(history[len(history)-1].Coordinates(), dest) <= thresholdMeters
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
