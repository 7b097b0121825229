package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestAuth_ValidToken(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
		"sub":  "courier-7",
		"role": "courier",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	c := echo.New().NewContext(req, httptest.NewRecorder())

	called := false
	err := Auth("secret")(func(c echo.Context) error {
		called = true
		if c.Get(CtxSubject) != "courier-7" {
			t.Errorf("subject = %v", c.Get(CtxSubject))
		}
		if c.Get(CtxRole) != "courier" {
			t.Errorf("role = %v", c.Get(CtxRole))
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatal("next not called")
	}
}

func TestAuth_Rejects(t *testing.T) {
	hour := time.Now().Add(time.Hour).Unix()
	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Token abc",
		"empty bearer":   "Bearer ",
		"garbage":        "Bearer not-a-token",
		"wrong secret": "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{
			"sub": "c", "role": "courier", "exp": hour,
		}),
		"expired": "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
			"sub": "c", "role": "courier", "exp": time.Now().Add(-time.Minute).Unix(),
		}),
		"no expiry": "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
			"sub": "c", "role": "courier",
		}),
		"other algorithm": "Bearer " + sign(t, jwt.SigningMethodHS384, []byte("secret"), jwt.MapClaims{
			"sub": "c", "role": "courier", "exp": hour,
		}),
		"unknown role": "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
			"sub": "c", "role": "client", "exp": hour,
		}),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())

			err := Auth("secret")(func(echo.Context) error {
				t.Fatal("should not reach next")
				return nil
			})(c)

			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %v", err)
			}
		})
	}
}
