package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/courier-tracking/internal/api/middleware"
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

// ---- stubs ----

type stubIngest struct {
	deliveries map[string]*ports.DeliveryView
	updated    []string
}

func (s *stubIngest) Process(context.Context, ports.TrackingEventInput) error { return nil }

func (s *stubIngest) GetDelivery(_ context.Context, id string) (*ports.DeliveryView, error) {
	v, ok := s.deliveries[id]
	if !ok {
		return nil, domain.ErrDeliveryNotFound
	}
	return v, nil
}

func (s *stubIngest) UpdateStatus(_ context.Context, id, status string) (*ports.DeliveryView, error) {
	s.updated = append(s.updated, id+"="+status)
	return &ports.DeliveryView{ID: id, Status: status}, nil
}

type stubDispatcher struct {
	events []ports.TrackingEventInput
}

func (d *stubDispatcher) Enqueue(e ports.TrackingEventInput) { d.events = append(d.events, e) }

// ---- helpers ----

func newContext(method, path, body, role, subject string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("D-1")
	if role != "" {
		c.Set(middleware.CtxRole, role)
		c.Set(middleware.CtxSubject, subject)
	}
	return c, rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

const validUpdate = `{
	"status": "IN_TRANSIT",
	"message": "Automatic location update",
	"location": {"latitude": 19.4326, "longitude": -99.1332, "accuracy": 12, "speed": 8.5, "timestamp": "2026-03-02T10:00:00Z"},
	"isAutomatic": true
}`

func inTransit() *stubIngest {
	return &stubIngest{deliveries: map[string]*ports.DeliveryView{
		"D-1": {ID: "D-1", Status: string(domain.DeliveryInTransit)},
	}}
}

// ---- Track ----

func TestTrack_Accepted(t *testing.T) {
	svc, disp := inTransit(), &stubDispatcher{}
	h := NewTrackingHandler(svc, disp)

	c, rec := newContext(http.MethodPost, "/deliveries/D-1/tracking", validUpdate, domain.RoleCourier, "courier-7")
	if err := h.Track(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if len(disp.events) != 1 {
		t.Fatalf("expected one enqueued update, got %d", len(disp.events))
	}
	ev := disp.events[0]
	if ev.DeliveryID != "D-1" || ev.CourierID != "courier-7" || !ev.IsAutomatic {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Location.Latitude != 19.4326 || ev.Location.Speed == nil || *ev.Location.Speed != 8.5 {
		t.Errorf("location not mapped: %+v", ev.Location)
	}
	if ev.Location.Heading != nil {
		t.Errorf("absent heading must stay nil")
	}
	if !ev.Location.Timestamp.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", ev.Location.Timestamp)
	}
}

func TestTrack_UnknownDelivery(t *testing.T) {
	h := NewTrackingHandler(&stubIngest{}, &stubDispatcher{})
	c, _ := newContext(http.MethodPost, "/deliveries/D-1/tracking", validUpdate, domain.RoleCourier, "courier-7")

	err := h.Track(c)
	if !errors.Is(err, domain.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestTrack_FinishedDeliveryConflicts(t *testing.T) {
	svc := &stubIngest{deliveries: map[string]*ports.DeliveryView{
		"D-1": {ID: "D-1", Status: string(domain.DeliveryDelivered)},
	}}
	disp := &stubDispatcher{}
	h := NewTrackingHandler(svc, disp)
	c, _ := newContext(http.MethodPost, "/deliveries/D-1/tracking", validUpdate, domain.RoleCourier, "courier-7")

	if code := httpCode(t, h.Track(c)); code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	if len(disp.events) != 0 {
		t.Fatalf("rejected update must not be enqueued")
	}
}

func TestTrack_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"missing latitude":  `{"status":"IN_TRANSIT","location":{"longitude":-99.1,"timestamp":"2026-03-02T10:00:00Z"}}`,
		"latitude range":    `{"status":"IN_TRANSIT","location":{"latitude":91,"longitude":-99.1,"timestamp":"2026-03-02T10:00:00Z"}}`,
		"unknown status":    `{"status":"LOST","location":{"latitude":19.4,"longitude":-99.1,"timestamp":"2026-03-02T10:00:00Z"}}`,
		"heading too large": `{"status":"IN_TRANSIT","location":{"latitude":19.4,"longitude":-99.1,"heading":360,"timestamp":"2026-03-02T10:00:00Z"}}`,
		"missing timestamp": `{"status":"IN_TRANSIT","location":{"latitude":19.4,"longitude":-99.1}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewTrackingHandler(inTransit(), &stubDispatcher{})
			c, _ := newContext(http.MethodPost, "/deliveries/D-1/tracking", body, domain.RoleCourier, "courier-7")
			if code := httpCode(t, h.Track(c)); code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", code)
			}
		})
	}
}

func TestTrack_MalformedJSON(t *testing.T) {
	h := NewTrackingHandler(inTransit(), &stubDispatcher{})
	c, _ := newContext(http.MethodPost, "/deliveries/D-1/tracking", `{"status":`, domain.RoleCourier, "courier-7")
	if code := httpCode(t, h.Track(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestTrack_MissingClaims(t *testing.T) {
	h := NewTrackingHandler(inTransit(), &stubDispatcher{})
	c, _ := newContext(http.MethodPost, "/deliveries/D-1/tracking", validUpdate, "", "")
	if code := httpCode(t, h.Track(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestTrack_CourierTokenWithoutSubject(t *testing.T) {
	h := NewTrackingHandler(inTransit(), &stubDispatcher{})
	c, _ := newContext(http.MethodPost, "/deliveries/D-1/tracking", validUpdate, domain.RoleCourier, "")
	if code := httpCode(t, h.Track(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

// ---- Get / UpdateStatus ----

func TestGet_ResponseShape(t *testing.T) {
	speed := 4.0
	svc := &stubIngest{deliveries: map[string]*ports.DeliveryView{
		"D-1": {
			ID:     "D-1",
			Status: string(domain.DeliveryInTransit),
			LastLocation: &ports.LocationInput{
				Latitude: 19.4, Longitude: -99.1, Accuracy: 10, Speed: &speed,
			},
		},
	}}
	h := NewTrackingHandler(svc, &stubDispatcher{})
	c, rec := newContext(http.MethodGet, "/deliveries/D-1", "", domain.RoleDispatcher, "ops-1")

	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Delivery struct {
			Status   string         `json:"status"`
			Location map[string]any `json:"location"`
		} `json:"delivery"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Delivery.Status != "IN_TRANSIT" {
		t.Errorf("status = %q", resp.Delivery.Status)
	}
	if resp.Delivery.Location["speed"] != 4.0 {
		t.Errorf("location = %+v", resp.Delivery.Location)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc := inTransit()
	h := NewTrackingHandler(svc, &stubDispatcher{})
	c, rec := newContext(http.MethodPut, "/deliveries/D-1/status", `{"status":"DELIVERED"}`, domain.RoleDispatcher, "ops-1")

	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.updated) != 1 || svc.updated[0] != "D-1=DELIVERED" {
		t.Fatalf("unexpected updates: %v", svc.updated)
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	h := NewTrackingHandler(inTransit(), &stubDispatcher{})
	c, _ := newContext(http.MethodPut, "/deliveries/D-1/status", `{"status":"SHIPPED"}`, domain.RoleAdmin, "root")
	if code := httpCode(t, h.UpdateStatus(c)); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
}
