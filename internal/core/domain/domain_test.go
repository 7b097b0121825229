package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDeliveryStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to DeliveryStatus
		want     bool
	}{
		{DeliveryPending, DeliveryAccepted, true},
		{DeliveryAccepted, DeliveryInTransit, true},
		{DeliveryInTransit, DeliveryInTransit, true},
		{DeliveryInTransit, DeliveryDelivered, true},
		{DeliveryInTransit, DeliveryCancelled, true},
		{DeliveryPending, DeliveryDelivered, false},
		{DeliveryDelivered, DeliveryDelivered, false},
		{DeliveryCancelled, DeliveryInTransit, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestDeliveryStatus_Terminal(t *testing.T) {
	for _, s := range []DeliveryStatus{DeliveryPending, DeliveryAccepted, DeliveryInTransit} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []DeliveryStatus{DeliveryDelivered, DeliveryCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if DeliveryStatus("LOST").Known() {
		t.Error("unexpected known status")
	}
}

func TestClassifySensorError(t *testing.T) {
	wrapped := fmt.Errorf("gps: %w", ErrPermissionDenied)
	if ClassifySensorError(wrapped) != ClassFatal {
		t.Error("permission denied must be fatal")
	}
	if ClassifySensorError(ErrSensorUnsupported) != ClassFatal {
		t.Error("unsupported sensor must be fatal")
	}
	if ClassifySensorError(ErrSensorTimeout) != ClassTransient {
		t.Error("timeout must be transient")
	}
	if ClassifySensorError(errors.New("weird")) != ClassTransient {
		t.Error("unknown errors must be transient")
	}
	if !IsSensorTimeout(fmt.Errorf("acquire: %w", context.DeadlineExceeded)) {
		t.Error("deadline exceeded must count as a timeout")
	}
	if SensorErrorReason(ErrSensorTimeout) == "" {
		t.Error("expected a reason string")
	}
}

func TestAcquisitionState_String(t *testing.T) {
	if StateDegraded.String() != "degraded" {
		t.Errorf("unexpected name %q", StateDegraded.String())
	}
	if !StateTimedOut.Terminal() || StateActive.Terminal() {
		t.Error("terminal classification wrong")
	}
	if AcquisitionState(99).String() != "unknown" {
		t.Error("expected unknown for out of range state")
	}
}
