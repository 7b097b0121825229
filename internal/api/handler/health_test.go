package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestReadiness(t *testing.T) {
	var redisErr error
	h := NewHealthHandler(map[string]Check{
		"redis": func(context.Context) error { return redisErr },
		"queue": func(context.Context) error { return nil },
	})

	probe := func() (int, readinessResponse) {
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)
		if err := h.Readiness(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		var resp readinessResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		return rec.Code, resp
	}

	code, resp := probe()
	if code != http.StatusOK || resp.Status != "ok" || len(resp.Dependencies) != 2 {
		t.Fatalf("healthy probe: %d %+v", code, resp)
	}
	if resp.Dependencies[0].Name != "queue" {
		t.Errorf("dependencies not sorted: %+v", resp.Dependencies)
	}

	redisErr = errors.New("connection refused")
	code, resp = probe()
	if code != http.StatusServiceUnavailable || resp.Status != "degraded" {
		t.Fatalf("degraded probe: %d %+v", code, resp)
	}
	if resp.Dependencies[1].Error != "connection refused" {
		t.Errorf("redis error not reported: %+v", resp.Dependencies[1])
	}
}
