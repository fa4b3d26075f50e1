package apiv1

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// NewAuthMiddleware guards API routes with a static bearer token. When no
// token is configured the gateway runs open, which is the expected setup for
// a local single-user install.
func NewAuthMiddleware(authToken string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authToken == "" {
				return next(c)
			}

			token := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
			if token == "" {
				return ErrorResponse(c, http.StatusUnauthorized, "authorization required")
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(authToken)) != 1 {
				return ErrorResponse(c, http.StatusUnauthorized, "invalid token")
			}

			return next(c)
		}
	}
}
