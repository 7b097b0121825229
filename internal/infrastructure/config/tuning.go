package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/99minutos/courier-tracking/internal/core/acquisition"
	"github.com/99minutos/courier-tracking/internal/core/estimation"
)

// Tuning overrides the built-in heuristics. Both sections are optional.
//
//	tiers:
//	  - name: high_accuracy
//	    high_accuracy: true
//	    timeout: 20s
//	    max_staleness: 5s
//	    attempts: 2
//	traffic:
//	  default: 1.0
//	  bands:
//	    - {name: morning_commute, start_hour: 7, end_hour: 9, weekdays_only: true, factor: 0.7}
type Tuning struct {
	Tiers   []acquisition.Tier       `yaml:"tiers"   validate:"omitempty,dive"`
	Traffic *estimation.TrafficTable `yaml:"traffic" validate:"omitempty"`
}

// LoadTuning reads and validates a tuning file.
func LoadTuning(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read tuning file: %w", err)
	}
	return ParseTuning(data)
}

// ParseTuning decodes and validates tuning YAML.
func ParseTuning(data []byte) (*Tuning, error) {
	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("config: parse tuning: %w", err)
	}
	if err := validator.New().Struct(t); err != nil {
		return nil, fmt.Errorf("config: invalid tuning: %w", err)
	}
	if t.Traffic != nil {
		if err := t.Traffic.Validate(); err != nil {
			return nil, fmt.Errorf("config: invalid tuning: %w", err)
		}
	}
	return &t, nil
}
