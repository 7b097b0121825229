package domain

import (
	"context"
	"errors"
)

// Sensor errors. Sensors wrap one of these so the acquisition controller can
// classify failures with errors.Is.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrSensorTimeout       = errors.New("location request timed out")
	ErrSensorUnsupported   = errors.New("location sensor unsupported")
)

// Transmission and session errors.
var (
	ErrTransmissionFailed = errors.New("tracking transmission failed")
	ErrNoPosition         = errors.New("no retained position")
	ErrNoDestination      = errors.New("destination not set")
	ErrSessionActive      = errors.New("tracking session already active")
	ErrSessionInactive    = errors.New("tracking session not active")
)

// Ingest endpoint errors.
var (
	ErrDeliveryNotFound  = errors.New("delivery not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("access forbidden")
)

// SensorErrorClass groups sensor failures by how acquisition reacts to them.
type SensorErrorClass int

const (
	// ClassTransient errors trigger tier fallback.
	ClassTransient SensorErrorClass = iota
	// ClassFatal errors end the session immediately without retries.
	ClassFatal
)

// ClassifySensorError maps a sensor failure to its handling class. Unknown
// errors are treated as an unavailable position.
func ClassifySensorError(err error) SensorErrorClass {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrSensorUnsupported):
		return ClassFatal
	default:
		return ClassTransient
	}
}

// IsSensorTimeout reports whether err is a tier timeout, including a context
// deadline hit while waiting on the sensor.
func IsSensorTimeout(err error) bool {
	return errors.Is(err, ErrSensorTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// SensorErrorReason returns the caller-visible reason string for err.
func SensorErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "location permission denied; re-authorize location access and retry"
	case errors.Is(err, ErrSensorUnsupported):
		return "location is not supported on this device"
	case IsSensorTimeout(err):
		return "location request timed out; retry manually"
	case errors.Is(err, ErrPositionUnavailable):
		return "position unavailable"
	default:
		return err.Error()
	}
}
