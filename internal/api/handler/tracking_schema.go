package handler

import "time"

type locationRequest struct {
	Latitude  *float64  `json:"latitude"  validate:"required,gte=-90,lte=90"`
	Longitude *float64  `json:"longitude" validate:"required,gte=-180,lte=180"`
	Accuracy  float64   `json:"accuracy"  validate:"gte=0"`
	Speed     *float64  `json:"speed"     validate:"omitempty,gte=0"`
	Heading   *float64  `json:"heading"   validate:"omitempty,gte=0,lt=360"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

type trackingRequest struct {
	Status      string          `json:"status"      validate:"required,oneof=PENDING ACCEPTED IN_TRANSIT DELIVERED CANCELLED"`
	Message     string          `json:"message"     validate:"max=280"`
	Location    locationRequest `json:"location"`
	IsAutomatic bool            `json:"isAutomatic"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING ACCEPTED IN_TRANSIT DELIVERED CANCELLED"`
}

type acceptedResponse struct {
	Message string `json:"message"`
}

type locationResponse struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Speed     *float64  `json:"speed"`
	Heading   *float64  `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

type deliveryBody struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	LastLocation *locationResponse `json:"location,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type deliveryResponse struct {
	Delivery deliveryBody `json:"delivery"`
}
