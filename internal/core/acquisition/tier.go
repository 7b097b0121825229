package acquisition

import (
	"fmt"
	"time"

	"github.com/99minutos/courier-tracking/internal/core/ports"
)

// Tier is a named sensor configuration tried in a fixed fallback order.
// Attempts is how many consecutive attempts the tier gets before the
// controller moves on to the next one.
type Tier struct {
	Name         string        `yaml:"name"          validate:"required"`
	HighAccuracy bool          `yaml:"high_accuracy"`
	Timeout      time.Duration `yaml:"timeout"       validate:"gt=0"`
	MaxStaleness time.Duration `yaml:"max_staleness" validate:"gte=0"`
	Attempts     int           `yaml:"attempts"      validate:"gte=1"`
}

// Options returns the sensor parameters of the tier.
func (t Tier) Options() ports.SensorOptions {
	return ports.SensorOptions{
		HighAccuracy: t.HighAccuracy,
		Timeout:      t.Timeout,
		MaxStaleness: t.MaxStaleness,
	}
}

// DefaultTiers returns high accuracy, low accuracy and fallback, each with
// looser timeout and staleness bounds than the previous one.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "high_accuracy", HighAccuracy: true, Timeout: 20 * time.Second, MaxStaleness: 5 * time.Second, Attempts: 2},
		{Name: "low_accuracy", HighAccuracy: false, Timeout: 30 * time.Second, MaxStaleness: 30 * time.Second, Attempts: 1},
		{Name: "fallback", HighAccuracy: false, Timeout: 60 * time.Second, MaxStaleness: 5 * time.Minute, Attempts: 1},
	}
}

// plan expands tiers into one entry per attempt.
type plan []Tier

func newPlan(tiers []Tier) (plan, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("acquisition: no tiers configured")
	}
	var p plan
	for _, t := range tiers {
		if t.Timeout <= 0 {
			return nil, fmt.Errorf("acquisition: tier %q: timeout must be positive", t.Name)
		}
		n := t.Attempts
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			p = append(p, t)
		}
	}
	return p, nil
}

// at returns the tier used for the given 0-based attempt.
func (p plan) at(attempt int) Tier {
	if attempt >= len(p) {
		return p[len(p)-1]
	}
	return p[attempt]
}

// retries is the retry cap: every attempt after the first.
func (p plan) retries() int {
	return len(p) - 1
}
