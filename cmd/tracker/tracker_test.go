package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

func TestParseCoordinates(t *testing.T) {
	c, err := parseCoordinates(" 19.4326, -99.1332 ")
	if err != nil {
		t.Fatalf("parseCoordinates: %v", err)
	}
	if c.Lat != 19.4326 || c.Lng != -99.1332 {
		t.Fatalf("got %+v", c)
	}

	for _, in := range []string{"19.4", "a,b", "91,0", "0,181", "1,2,3"} {
		if _, err := parseCoordinates(in); err == nil {
			t.Errorf("parseCoordinates(%q): expected error", in)
		}
	}
}

func TestConsoleListener(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	l := newConsoleListener(&buf)

	acc := 12.0
	l.OnStatusChange(domain.StatusChange{State: domain.StateActive, Tier: "high_accuracy", AccuracyMeters: &acc})
	l.OnPositionUpdate(domain.Position{Latitude: 19.4, Longitude: -99.1, AccuracyMeters: 12, SpeedMetersPerSecond: domain.Float(10)})
	l.OnETAUpdate(domain.ETAEstimate{
		EstimatedMinutes:  7,
		EstimatedArrival:  time.Date(2026, 3, 2, 10, 7, 0, 0, time.UTC),
		ConfidencePercent: 80,
		SpeedSource:       domain.SpeedFromHistory,
		NearDestination:   true,
	})
	l.OnStatusChange(domain.StatusChange{State: domain.StateTimedOut, Tier: "fallback", RetryCount: 3, Err: errors.New("x"), Reason: "timeout"})

	out := buf.String()
	for _, want := range []string{
		"state    active tier=high_accuracy retry=0 accuracy=12m",
		"position 19.400000,-99.100000 ±12m 36.0 km/h",
		"eta      7 min (10:07) confidence=80%",
		"near destination",
		`state    timed_out tier=fallback retry=3 reason="timeout"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
