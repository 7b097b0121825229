package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

// UpdateDispatcher is the interface the handler uses to enqueue updates.
type UpdateDispatcher interface {
	Enqueue(event ports.TrackingEventInput)
}

// TrackingHandler serves the tracking-ingest and delivery-status endpoints.
type TrackingHandler struct {
	service    ports.IngestService
	dispatcher UpdateDispatcher
}

// NewTrackingHandler creates a TrackingHandler.
func NewTrackingHandler(service ports.IngestService, dispatcher UpdateDispatcher) *TrackingHandler {
	return &TrackingHandler{service: service, dispatcher: dispatcher}
}

// Track handles POST /deliveries/:id/tracking. The update is validated
// against the delivery's current status, then enqueued; it returns 202.
func (h *TrackingHandler) Track(c echo.Context) error {
	_, courierID, err := ctxClaims(c)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "delivery id is required")
	}

	var req trackingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	// Fail fast on unknown or finished deliveries; the worker re-checks.
	current, err := h.service.GetDelivery(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !domain.DeliveryStatus(current.Status).CanTransitionTo(domain.DeliveryStatus(req.Status)) {
		return echo.NewHTTPError(http.StatusConflict, "delivery is "+current.Status)
	}

	h.dispatcher.Enqueue(toEventInput(id, courierID, req))
	return c.JSON(http.StatusAccepted, acceptedResponse{Message: "tracking update accepted"})
}

// Get handles GET /deliveries/:id.
func (h *TrackingHandler) Get(c echo.Context) error {
	if _, _, err := ctxClaims(c); err != nil {
		return err
	}
	v, err := h.service.GetDelivery(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDeliveryResponse(v))
}

// UpdateStatus handles PUT /deliveries/:id/status.
func (h *TrackingHandler) UpdateStatus(c echo.Context) error {
	if _, _, err := ctxClaims(c); err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	v, err := h.service.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDeliveryResponse(v))
}

// toEventInput maps the HTTP request to the service DTO.
func toEventInput(id, courierID string, r trackingRequest) ports.TrackingEventInput {
	return ports.TrackingEventInput{
		DeliveryID: id,
		Status:     r.Status,
		Message:    r.Message,
		Location: ports.LocationInput{
			Latitude:  *r.Location.Latitude,
			Longitude: *r.Location.Longitude,
			Accuracy:  r.Location.Accuracy,
			Speed:     r.Location.Speed,
			Heading:   r.Location.Heading,
			Timestamp: r.Location.Timestamp,
		},
		IsAutomatic: r.IsAutomatic,
		CourierID:   courierID,
	}
}

func toDeliveryResponse(v *ports.DeliveryView) deliveryResponse {
	body := deliveryBody{ID: v.ID, Status: v.Status, UpdatedAt: v.UpdatedAt}
	if l := v.LastLocation; l != nil {
		body.LastLocation = &locationResponse{
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
			Accuracy:  l.Accuracy,
			Speed:     l.Speed,
			Heading:   l.Heading,
			Timestamp: l.Timestamp,
		}
	}
	return deliveryResponse{Delivery: body}
}
