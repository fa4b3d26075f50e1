package apiv1

import (
	"net/http"

	"github.com/docsift/docsift/pkg/oauth"
	"github.com/docsift/docsift/pkg/sources"
	"github.com/docsift/docsift/pkg/types"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// AccountsGroup serves the configured-accounts surface: which accounts
// exist, whether they hold a stored token, and disconnect.
type AccountsGroup struct {
	config types.AppConfig
	tokens *oauth.Manager
	cache  *sources.QueryCache
}

// NewAccountsGroup creates and registers account routes.
func NewAccountsGroup(g *echo.Group, config types.AppConfig, tokens *oauth.Manager, cache *sources.QueryCache) *AccountsGroup {
	ag := &AccountsGroup{
		config: config,
		tokens: tokens,
		cache:  cache,
	}

	g.GET("", ag.ListAccounts)
	g.DELETE("/:provider/:alias", ag.Disconnect)

	return ag
}

// AccountStatus describes one configured account without exposing secrets.
type AccountStatus struct {
	Provider  string `json:"provider"`
	Alias     string `json:"alias"`
	Email     string `json:"email,omitempty"`
	Connected bool   `json:"connected"`
	ExpiresAt int64  `json:"expires_at,omitempty"` // epoch millis, 0 = unknown
}

// ListAccounts reports every configured OAuth account and its connection
// state.
func (ag *AccountsGroup) ListAccounts(c echo.Context) error {
	ctx := c.Request().Context()

	statuses := make([]AccountStatus, 0)
	for _, p := range types.Providers() {
		for _, account := range ag.config.AccountsFor(p) {
			status := AccountStatus{
				Provider: string(p),
				Alias:    account.Alias,
			}

			record, err := ag.tokens.Record(ctx, p, account.Alias)
			if err != nil {
				log.Error().Err(err).Str("account", account.Key()).Msg("failed to read credential store")
				return ErrorResponse(c, http.StatusInternalServerError, types.ErrStoreUnavailable.Error())
			}
			if record != nil {
				status.Connected = true
				status.Email = record.Extra["email"]
				status.ExpiresAt = record.ExpiresAt
			}
			statuses = append(statuses, status)
		}
	}

	return SuccessResponse(c, statuses)
}

// Disconnect deletes the stored token for one account. The account stays in
// config; a new connect flow can re-authenticate it.
func (ag *AccountsGroup) Disconnect(c echo.Context) error {
	provider := types.Provider(c.Param("provider"))
	alias := c.Param("alias")

	if !provider.Valid() || provider == types.ProviderLocal {
		err := &types.ErrUnknownProvider{Name: c.Param("provider")}
		return ErrorResponse(c, http.StatusBadRequest, err.Error())
	}

	existed, err := ag.tokens.Disconnect(c.Request().Context(), provider, alias)
	if err != nil {
		log.Error().Err(err).Str("provider", string(provider)).Str("alias", alias).Msg("disconnect failed")
		return ErrorResponse(c, http.StatusInternalServerError, types.ErrStoreUnavailable.Error())
	}
	if !existed {
		return ErrorResponse(c, http.StatusNotFound, types.ErrNotConnected.Error())
	}

	// Cached results may include items this account can no longer reach
	ag.cache.Flush()

	log.Info().Str("provider", string(provider)).Str("alias", alias).Msg("account disconnected")
	return SuccessResponse(c, map[string]bool{"disconnected": true})
}
