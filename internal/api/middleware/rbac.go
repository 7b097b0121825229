package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// RBAC lets the request through only for the listed roles. Denials are
// returned as domain.ErrForbidden for the central error handler.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if !allowed[role] {
				return fmt.Errorf("role %q on %s %s: %w", role, c.Request().Method, c.Path(), domain.ErrForbidden)
			}
			return next(c)
		}
	}
}
