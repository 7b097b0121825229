package domain

import "time"

// DeliveryStatus is the lifecycle state of a delivery as reported by the
// delivery-status endpoint.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryAccepted  DeliveryStatus = "ACCEPTED"
	DeliveryInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryCancelled DeliveryStatus = "CANCELLED"
)

// validTransitions defines the allowed delivery status transitions.
var validTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending:   {DeliveryAccepted, DeliveryCancelled},
	DeliveryAccepted:  {DeliveryInTransit, DeliveryCancelled},
	DeliveryInTransit: {DeliveryDelivered, DeliveryCancelled},
}

// Terminal reports whether tracking must stop for a delivery in this status.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryCancelled
}

// Known reports whether s is one of the defined statuses.
func (s DeliveryStatus) Known() bool {
	switch s {
	case DeliveryPending, DeliveryAccepted, DeliveryInTransit, DeliveryDelivered, DeliveryCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a transition from s to next is valid.
// Repeating the current status is allowed so that tracking updates carrying
// IN_TRANSIT can be applied to an in-transit delivery.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if s == next && !s.Terminal() {
		return true
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TrackingPoint is a location recorded by the ingest endpoint.
type TrackingPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Delivery is the ingest endpoint's view of a delivery being tracked.
type Delivery struct {
	ID           string         `json:"id"`
	Status       DeliveryStatus `json:"status"`
	LastLocation *TrackingPoint `json:"last_location,omitempty"`
	LastMessage  string         `json:"last_message,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
