package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docsift/docsift/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const graphMeURL = "https://graph.microsoft.com/v1.0/me"

// MicrosoftClient handles Microsoft identity platform OAuth for connected
// accounts. The tenant comes from the account config and defaults to
// "common" for multi-tenant apps.
type MicrosoftClient struct {
	httpClient *http.Client
}

var _ Provider = (*MicrosoftClient)(nil)

// NewMicrosoftClient creates a new Microsoft OAuth client
func NewMicrosoftClient() *MicrosoftClient {
	return &MicrosoftClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *MicrosoftClient) Name() types.Provider {
	return types.ProviderMicrosoft
}

// Configured returns true if the account has valid client credentials
func (m *MicrosoftClient) Configured(account *types.Account) bool {
	return account != nil && account.ClientID != "" && account.ClientSecret != "" && account.RedirectURL != ""
}

// AuthorizeURL generates the Microsoft OAuth authorization URL for an account.
// The offline_access scope already requests a refresh token, so no extra
// access-type parameter is needed.
func (m *MicrosoftClient) AuthorizeURL(state string, account *types.Account) (string, error) {
	if !m.Configured(account) {
		return "", fmt.Errorf("microsoft account %q is missing client credentials", account.Alias)
	}

	cfg := m.oauthConfig(account)
	return cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// Exchange exchanges an authorization code for a token record
func (m *MicrosoftClient) Exchange(ctx context.Context, code string, account *types.Account) (*types.TokenRecord, error) {
	cfg := m.oauthConfig(account)

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

	// Best effort: remember which Microsoft identity was connected
	if email := m.fetchEmail(ctx, token.AccessToken); email != "" {
		record.Extra = map[string]string{"email": email}
	}

	return record, nil
}

// Refresh refreshes an access token using a refresh token. Microsoft rotates
// refresh tokens, so the returned record usually carries a new one.
func (m *MicrosoftClient) Refresh(ctx context.Context, account *types.Account, refreshToken string) (*types.TokenRecord, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token")
	}

	// The identity platform wants the scope repeated on refresh
	data := url.Values{
		"client_id":     {account.ClientID},
		"client_secret": {account.ClientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
		"scope":         {strings.Join(account.Scopes, " ")},
	}

	tokenURL := microsoft.AzureADEndpoint(account.TenantID).TokenURL
	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
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
		RefreshToken: result.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(result.ExpiresIn) * time.Second).UnixMilli(),
	}
	if result.Scope != "" {
		record.Scopes = strings.Fields(result.Scope)
	}
	return record, nil
}

func (m *MicrosoftClient) fetchEmail(ctx context.Context, accessToken string) string {
	req, err := http.NewRequestWithContext(ctx, "GET", graphMeURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch microsoft profile")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var profile struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := decodeJSON(resp.Body, &profile); err != nil {
		return ""
	}
	if profile.Mail != "" {
		return profile.Mail
	}
	return profile.UserPrincipalName
}

func (m *MicrosoftClient) oauthConfig(account *types.Account) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     account.ClientID,
		ClientSecret: account.ClientSecret,
		RedirectURL:  account.RedirectURL,
		Scopes:       account.Scopes,
		Endpoint:     microsoft.AzureADEndpoint(account.TenantID),
	}
}
