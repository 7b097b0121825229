package domain

import "time"

// AcquisitionState is the state of the location acquisition state machine.
type AcquisitionState int

const (
	StateInactive AcquisitionState = iota
	StateRequesting
	StateActive
	StateDegraded
	StateTimedOut
	StateError
)

var stateNames = map[AcquisitionState]string{
	StateInactive:   "inactive",
	StateRequesting: "requesting",
	StateActive:     "active",
	StateDegraded:   "degraded",
	StateTimedOut:   "timed_out",
	StateError:      "error",
}

func (s AcquisitionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further acquisition happens without a new Start.
func (s AcquisitionState) Terminal() bool {
	return s == StateTimedOut || s == StateError
}

// Tracking reports whether the sensor is currently delivering usable readings.
func (s AcquisitionState) Tracking() bool {
	return s == StateActive || s == StateDegraded
}

// StatusChange is delivered to listeners on every acquisition state change.
type StatusChange struct {
	State      AcquisitionState
	Tier       string
	RetryCount int
	// Err is set for the failure that caused the transition, if any.
	Err error
	// Reason is a caller-visible description of Err.
	Reason string
	// AccuracyMeters is set when the transition was caused by a reading.
	AccuracyMeters *float64
	At             time.Time
}

// SessionSnapshot is a read-only copy of a tracking session's state.
type SessionSnapshot struct {
	SessionID            string
	DeliveryID           string
	State                AcquisitionState
	RetryCount           int
	HistoryLen           int
	LastTransmittedAt    *time.Time
	LastRetainedPosition *Position
	Destination          *Coordinates
}
