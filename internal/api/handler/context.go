package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/courier-tracking/internal/api/middleware"
	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// ctxClaims extracts the auth claims injected by the Auth middleware and
// performs a fast-fail check before any service call:
//   - role must be non-empty (presence proves the middleware ran).
//   - courier tokens must name the courier in "sub"; the subject is attached
//     to every update it posts.
func ctxClaims(c echo.Context) (role, subject string, err error) {
	role, _ = c.Get(middleware.CtxRole).(string)
	if role == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	subject, _ = c.Get(middleware.CtxSubject).(string)
	if role == domain.RoleCourier && subject == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "token missing courier identity")
	}

	return role, subject, nil
}
