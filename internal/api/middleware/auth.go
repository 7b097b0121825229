package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// Context keys set by Auth.
const (
	CtxSubject = "subject"
	CtxRole    = "role"
)

// trackingClaims are the claims of an ingest bearer token. "exp" is required.
type trackingClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates the HS256 bearer token and injects its subject and role
// into the request context. Tokens with a role outside the known set are
// rejected here rather than by each route.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	key := []byte(jwtSecret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed bearer token")
			}

			var claims trackingClaims
			tkn, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if !knownRole(claims.Role) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token carries an unknown role")
			}

			c.Set(CtxSubject, claims.Subject)
			c.Set(CtxRole, claims.Role)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func knownRole(role string) bool {
	switch role {
	case domain.RoleCourier, domain.RoleDispatcher, domain.RoleAdmin:
		return true
	}
	return false
}
