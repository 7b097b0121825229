package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// errorResponse is the JSON envelope of every error: {"error": "<message>"}.
type errorResponse struct {
	Error string `json:"error"`
}

// domainStatus maps sentinel errors to a status and, when set, a fixed
// client message. An empty message exposes the wrapped error text.
var domainStatus = []struct {
	err  error
	code int
	msg  string
}{
	{domain.ErrDeliveryNotFound, http.StatusNotFound, "delivery not found"},
	{domain.ErrForbidden, http.StatusForbidden, "access forbidden"},
	{domain.ErrInvalidTransition, http.StatusUnprocessableEntity, ""},
}

// NewHTTPErrorHandler renders echo and domain errors with their status code.
// Anything else is logged and reported as a 500 without details.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, msg := resolveError(err)
		if code == http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("unhandled error")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}
	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			if m.msg == "" {
				return m.code, err.Error()
			}
			return m.code, m.msg
		}
	}
	return http.StatusInternalServerError, "internal server error"
}
