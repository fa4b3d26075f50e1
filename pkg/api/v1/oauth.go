package apiv1

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/docsift/docsift/pkg/oauth"
	"github.com/docsift/docsift/pkg/sources"
	"github.com/docsift/docsift/pkg/types"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	errMsgSessionInvalid = "Invalid or expired OAuth session"
	errMsgProviderConfig = "Provider not configured"
	errMsgNoAuthCode     = "Missing authorization code"
	errMsgTokenExchange  = "Token exchange failed"
	errMsgSaveToken      = "Failed to save credentials"
)

// OAuthGroup handles the connect flow for provider accounts.
type OAuthGroup struct {
	config   types.AppConfig
	store    *oauth.Store
	registry *oauth.Registry
	tokens   *oauth.Manager
	cache    *sources.QueryCache
}

// NewOAuthGroup creates and registers OAuth routes. The session routes take
// the given middleware; the callback stays open because the provider's
// redirect cannot carry an auth header.
func NewOAuthGroup(g *echo.Group, config types.AppConfig, store *oauth.Store, registry *oauth.Registry, tokens *oauth.Manager, cache *sources.QueryCache, sessionMW ...echo.MiddlewareFunc) *OAuthGroup {
	og := &OAuthGroup{
		config:   config,
		store:    store,
		registry: registry,
		tokens:   tokens,
		cache:    cache,
	}

	g.POST("/sessions", og.CreateSession, sessionMW...)
	g.GET("/sessions/:id", og.GetSession, sessionMW...)
	g.GET("/callback", og.Callback)

	return og
}

type CreateSessionRequest struct {
	Provider string `json:"provider"`
	Alias    string `json:"alias"`
	ReturnTo string `json:"return_to,omitempty"`
}

type CreateSessionResponse struct {
	SessionID    string `json:"session_id"`
	AuthorizeURL string `json:"authorize_url"`
}

// CreateSession starts a connect flow for one configured account and
// returns the authorization URL to open in a browser.
func (og *OAuthGroup) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}

	provider := types.Provider(req.Provider)
	if !provider.Valid() || provider == types.ProviderLocal {
		return ErrorResponse(c, http.StatusBadRequest, fmt.Sprintf("provider %q does not use OAuth", req.Provider))
	}
	if req.Alias == "" {
		return ErrorResponse(c, http.StatusBadRequest, "alias required")
	}

	account, ok := og.config.FindAccount(provider, req.Alias)
	if !ok {
		err := &types.ErrUnknownAccount{Alias: req.Alias}
		return ErrorResponse(c, http.StatusBadRequest, err.Error())
	}

	client, err := og.registry.MustGet(provider)
	if err != nil {
		return ErrorResponse(c, http.StatusBadRequest, err.Error())
	}
	if !client.Configured(account) {
		return ErrorResponse(c, http.StatusBadRequest, fmt.Sprintf("account %s has no OAuth client credentials configured", account.Key()))
	}

	if req.ReturnTo != "" {
		if !strings.HasPrefix(req.ReturnTo, "/") &&
			!strings.HasPrefix(req.ReturnTo, "http://") &&
			!strings.HasPrefix(req.ReturnTo, "https://") {
			return ErrorResponse(c, http.StatusBadRequest, "return_to must be a relative path or full URL")
		}
	}

	session := og.store.Create(provider, req.Alias, req.ReturnTo)

	authorizeURL, err := client.AuthorizeURL(session.State, account)
	if err != nil {
		og.store.Delete(session.ID)
		return ErrorResponse(c, http.StatusInternalServerError, err.Error())
	}

	log.Info().
		Str("session_id", session.ID).
		Str("account", account.Key()).
		Msg("oauth session created")

	return c.JSON(http.StatusCreated, Response{
		Success: true,
		Data: CreateSessionResponse{
			SessionID:    session.ID,
			AuthorizeURL: authorizeURL,
		},
	})
}

type GetSessionResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Email  string `json:"email,omitempty"`
}

// GetSession returns the status of an OAuth session, for CLI polling.
func (og *OAuthGroup) GetSession(c echo.Context) error {
	session := og.store.Get(c.Param("id"))
	if session == nil {
		return ErrorResponse(c, http.StatusNotFound, "session not found")
	}

	return SuccessResponse(c, GetSessionResponse{
		Status: string(session.Status),
		Error:  session.Error,
		Email:  session.Email,
	})
}

// Callback handles the provider redirect for all providers; the session is
// recovered from the state parameter.
func (og *OAuthGroup) Callback(c echo.Context) error {
	state := c.QueryParam("state")
	code := c.QueryParam("code")
	errParam := c.QueryParam("error")

	session := og.store.GetByState(state)
	if session == nil {
		return renderErrorPage(c, errMsgSessionInvalid)
	}

	account, ok := og.config.FindAccount(session.Provider, session.Alias)
	if !ok {
		og.store.Fail(session.ID, "account removed from configuration")
		return renderErrorPage(c, errMsgProviderConfig)
	}

	client, err := og.registry.MustGet(session.Provider)
	if err != nil {
		og.store.Fail(session.ID, err.Error())
		return renderErrorPage(c, errMsgProviderConfig)
	}

	if errParam != "" {
		og.store.Fail(session.ID, string(session.Provider)+": "+errParam)
		return renderErrorPage(c, fmt.Sprintf("%s authorization failed: %s", session.Provider, errParam))
	}

	if code == "" {
		og.store.Fail(session.ID, errMsgNoAuthCode)
		return renderErrorPage(c, errMsgNoAuthCode)
	}

	record, err := client.Exchange(c.Request().Context(), code, account)
	if err != nil {
		og.store.Fail(session.ID, err.Error())
		log.Error().Err(err).Str("session_id", session.ID).Str("account", account.Key()).Msg("oauth token exchange failed")
		return renderErrorPage(c, errMsgTokenExchange)
	}

	if err := og.tokens.SaveInitial(c.Request().Context(), session.Provider, session.Alias, record); err != nil {
		og.store.Fail(session.ID, err.Error())
		log.Error().Err(err).Str("session_id", session.ID).Msg("failed to save token record")
		return renderErrorPage(c, errMsgSaveToken)
	}

	email := ""
	if record.Extra != nil {
		email = record.Extra["email"]
	}
	og.store.Complete(session.ID, email)

	// Previously cached searches predate this account's reachable scope
	og.cache.Flush()

	log.Info().
		Str("session_id", session.ID).
		Str("account", account.Key()).
		Str("email", email).
		Msg("account connected")

	if session.ReturnTo != "" {
		return c.Redirect(http.StatusFound, session.ReturnTo)
	}

	display := account.Key()
	if email != "" {
		display = email
	}
	return renderSuccessPage(c, display)
}
