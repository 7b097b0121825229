package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// consoleListener prints session events for an operator watching a run.
type consoleListener struct {
	mu  sync.Mutex
	out io.Writer

	cyan   *color.Color
	green  *color.Color
	yellow *color.Color
	red    *color.Color
}

func newConsoleListener(out io.Writer) *consoleListener {
	return &consoleListener{
		out:    out,
		cyan:   color.New(color.FgCyan, color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed, color.Bold),
	}
}

func (l *consoleListener) OnPositionUpdate(p domain.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cyan.Fprint(l.out, "position ")
	fmt.Fprintf(l.out, "%.6f,%.6f ±%.0fm", p.Latitude, p.Longitude, p.AccuracyMeters)
	if kmh, ok := p.SpeedKmh(); ok {
		fmt.Fprintf(l.out, " %.1f km/h", kmh)
	}
	fmt.Fprintln(l.out)
}

func (l *consoleListener) OnStatusChange(c domain.StatusChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	paint := l.green
	switch {
	case c.State.Terminal():
		paint = l.red
	case c.State == domain.StateDegraded || c.State == domain.StateRequesting:
		paint = l.yellow
	}
	paint.Fprintf(l.out, "state    %s", c.State)
	fmt.Fprintf(l.out, " tier=%s retry=%d", c.Tier, c.RetryCount)
	if c.AccuracyMeters != nil {
		fmt.Fprintf(l.out, " accuracy=%.0fm", *c.AccuracyMeters)
	}
	if c.Reason != "" {
		fmt.Fprintf(l.out, " reason=%q", c.Reason)
	}
	fmt.Fprintln(l.out)
}

func (l *consoleListener) OnETAUpdate(e domain.ETAEstimate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.green.Fprint(l.out, "eta      ")
	fmt.Fprintf(l.out, "%d min (%s) confidence=%d%% distance=%.0fm speed=%.1f km/h [%s] traffic=%.2f",
		e.EstimatedMinutes,
		e.EstimatedArrival.Format("15:04"),
		e.ConfidencePercent,
		e.CorrectedDistanceMeters,
		e.SpeedKmh,
		e.SpeedSource,
		e.TrafficFactor,
	)
	if e.NearDestination {
		l.yellow.Fprint(l.out, " near destination")
	}
	fmt.Fprintln(l.out)
}
