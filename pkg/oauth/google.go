package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docsift/docsift/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleClient handles Google OAuth operations for connected accounts
type GoogleClient struct {
	httpClient *http.Client
}

var _ Provider = (*GoogleClient)(nil)

// NewGoogleClient creates a new Google OAuth client
func NewGoogleClient() *GoogleClient {
	return &GoogleClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GoogleClient) Name() types.Provider {
	return types.ProviderGoogle
}

// Configured returns true if the account has valid client credentials
func (g *GoogleClient) Configured(account *types.Account) bool {
	return account != nil && account.ClientID != "" && account.ClientSecret != "" && account.RedirectURL != ""
}

// AuthorizeURL generates the Google OAuth authorization URL for an account
func (g *GoogleClient) AuthorizeURL(state string, account *types.Account) (string, error) {
	if !g.Configured(account) {
		return "", fmt.Errorf("google account %q is missing client credentials", account.Alias)
	}

	cfg := g.oauthConfig(account)

	// Request offline access to get refresh token, and always prompt for consent
	// to ensure we get a refresh token even if user previously authorized
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent select_account"),
	), nil
}

// Exchange exchanges an authorization code for a token record
func (g *GoogleClient) Exchange(ctx context.Context, code string, account *types.Account) (*types.TokenRecord, error) {
	cfg := g.oauthConfig(account)

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange failed: %w", err)
	}

	record := &types.TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       account.Scopes,
	}
	if !token.Expiry.IsZero() {
		record.ExpiresAt = token.Expiry.UnixMilli()
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		record.Scopes = strings.Fields(scope)
	}

	// Best effort: remember which Google identity was connected
	if email := g.fetchEmail(ctx, token.AccessToken); email != "" {
		record.Extra = map[string]string{"email": email}
	}

	return record, nil
}

// Refresh refreshes an access token using a refresh token
func (g *GoogleClient) Refresh(ctx context.Context, account *types.Account, refreshToken string) (*types.TokenRecord, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token")
	}

	// Use token endpoint directly for refresh
	data := url.Values{
		"client_id":     {account.ClientID},
		"client_secret": {account.ClientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", google.Endpoint.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refresh failed: status %d", resp.StatusCode)
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Scope        string `json:"scope"`
		TokenType    string `json:"token_type"`
	}
	if err := decodeJSON(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	record := &types.TokenRecord{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken, // usually empty; Google rarely rotates
		ExpiresAt:    time.Now().Add(time.Duration(result.ExpiresIn) * time.Second).UnixMilli(),
	}
	if result.Scope != "" {
		record.Scopes = strings.Fields(result.Scope)
	}
	return record, nil
}

func (g *GoogleClient) fetchEmail(ctx context.Context, accessToken string) string {
	req, err := http.NewRequestWithContext(ctx, "GET", googleUserinfoURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch google userinfo")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(resp.Body, &info); err != nil {
		return ""
	}
	return info.Email
}

func (g *GoogleClient) oauthConfig(account *types.Account) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     account.ClientID,
		ClientSecret: account.ClientSecret,
		RedirectURL:  account.RedirectURL,
		Scopes:       account.Scopes,
		Endpoint:     google.Endpoint,
	}
}

// decodeJSON decodes JSON from a reader
func decodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}
