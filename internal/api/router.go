package api

import (
	"context"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/api/handler"
	"github.com/99minutos/courier-tracking/internal/api/middleware"
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

// Deps are the collaborators of the ingest router.
type Deps struct {
	Service    ports.IngestService
	Dispatcher handler.UpdateDispatcher
	Redis      *redis.Client
	JWTSecret  string
	Log        zerolog.Logger
	// Registry receives the HTTP metrics; nil uses the default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddlewareWithConfig(metricsConfig(d.Registry)))

	// --- Dependencies ---
	trackingHandler := handler.NewTrackingHandler(d.Service, d.Dispatcher)
	authMiddleware := middleware.Auth(d.JWTSecret)

	// --- Delivery routes ---
	deliveries := e.Group("/deliveries", authMiddleware)
	deliveries.POST("/:id/tracking", trackingHandler.Track, middleware.RBAC(domain.RoleCourier, domain.RoleAdmin))
	deliveries.GET("/:id", trackingHandler.Get, middleware.RBAC(domain.RoleCourier, domain.RoleDispatcher, domain.RoleAdmin))
	deliveries.PUT("/:id/status", trackingHandler.UpdateStatus, middleware.RBAC(domain.RoleDispatcher, domain.RoleAdmin))

	// --- Health probes and metrics (no auth required) ---
	health := handler.NewHealthHandler(map[string]handler.Check{
		"redis": func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() },
	})
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", metricsHandler(d.Registry))

	return e
}

func metricsConfig(reg *prometheus.Registry) echoprometheus.MiddlewareConfig {
	cfg := echoprometheus.MiddlewareConfig{Subsystem: "courier_tracking_ingest"}
	if reg != nil {
		cfg.Registerer = reg
	}
	return cfg
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}
