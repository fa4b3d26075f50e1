package apiv1

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthTestServer(authToken string) *echo.Echo {
	e := echo.New()
	g := e.Group("/guarded", NewAuthMiddleware(authToken))
	g.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestAuthMiddlewareOpenWithoutToken(t *testing.T) {
	e := newAuthTestServer("")

	rec := doRequest(e, http.MethodGet, "/guarded", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareRequiresHeader(t *testing.T) {
	e := newAuthTestServer("secret")

	rec := doRequest(e, http.MethodGet, "/guarded", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authorization required")
}

func TestAuthMiddlewareRejectsWrongToken(t *testing.T) {
	e := newAuthTestServer("secret")

	rec := doRequest(e, http.MethodGet, "/guarded", nil, map[string]string{"Authorization": "Bearer nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestAuthMiddlewareAcceptsToken(t *testing.T) {
	e := newAuthTestServer("secret")

	rec := doRequest(e, http.MethodGet, "/guarded", nil, map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareAcceptsBareToken(t *testing.T) {
	// Tokens without the Bearer prefix are accepted too, which keeps
	// curl -H "Authorization: <token>" working.
	e := newAuthTestServer("secret")

	rec := doRequest(e, http.MethodGet, "/guarded", nil, map[string]string{"Authorization": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
