package estimation

import (
	"fmt"
	"time"
)

// TrafficBand applies Factor to the estimated speed during [StartHour, EndHour)
// local time. A band with StartHour > EndHour wraps past midnight.
type TrafficBand struct {
	Name         string  `yaml:"name"          validate:"required"`
	StartHour    int     `yaml:"start_hour"    validate:"gte=0,lte=23"`
	EndHour      int     `yaml:"end_hour"      validate:"gte=0,lte=24"`
	WeekdaysOnly bool    `yaml:"weekdays_only"`
	Factor       float64 `yaml:"factor"        validate:"gt=0"`
}

func (b TrafficBand) contains(t time.Time) bool {
	if b.WeekdaysOnly {
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	h := t.Hour()
	if b.StartHour <= b.EndHour {
		return h >= b.StartHour && h < b.EndHour
	}
	return h >= b.StartHour || h < b.EndHour
}

// TrafficTable is a static hour-of-day heuristic. It is not live traffic data.
// The first matching band wins; Default applies otherwise.
type TrafficTable struct {
	Bands   []TrafficBand `yaml:"bands"   validate:"dive"`
	Default float64       `yaml:"default" validate:"gt=0"`
}

// DefaultTrafficTable returns the built-in commute/lunch/night bands.
func DefaultTrafficTable() TrafficTable {
	return TrafficTable{
		Bands: []TrafficBand{
			{Name: "morning_commute", StartHour: 7, EndHour: 9, WeekdaysOnly: true, Factor: 0.7},
			{Name: "evening_commute", StartHour: 17, EndHour: 19, WeekdaysOnly: true, Factor: 0.7},
			{Name: "lunch", StartHour: 12, EndHour: 14, Factor: 0.85},
			{Name: "night", StartHour: 22, EndHour: 6, Factor: 1.2},
		},
		Default: 1.0,
	}
}

// FactorAt returns the speed multiplier for the local time t.
func (tt TrafficTable) FactorAt(t time.Time) (float64, string) {
	for _, b := range tt.Bands {
		if b.contains(t) {
			return b.Factor, b.Name
		}
	}
	if tt.Default <= 0 {
		return 1.0, "default"
	}
	return tt.Default, "default"
}

// Validate checks band bounds that struct tags cannot express.
func (tt TrafficTable) Validate() error {
	for _, b := range tt.Bands {
		if b.StartHour == b.EndHour {
			return fmt.Errorf("traffic band %q: empty hour range", b.Name)
		}
		if b.Factor <= 0 {
			return fmt.Errorf("traffic band %q: factor must be positive", b.Name)
		}
	}
	return nil
}
