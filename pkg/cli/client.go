package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apiv1 "github.com/docsift/docsift/pkg/api/v1"
	"github.com/docsift/docsift/pkg/types"
)

const defaultRequestTimeout = 30 * time.Second

// Client wraps HTTP calls to the gateway API.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// NewClient creates a gateway API client.
func NewClient(addr, token string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(addr, "/"),
		authToken: token,
		http:      &http.Client{Timeout: defaultRequestTimeout},
	}
}

// APIError is a non-success response from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("gateway returned %d", e.StatusCode)
}

// envelope mirrors the gateway's response wrapper with the payload left raw
// so each call can decode its own shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.baseURL + apiv1.HttpServerBaseRoute + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 400 || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Search runs one aggregated search through the gateway.
func (c *Client) Search(ctx context.Context, req types.SearchRequest) ([]types.SearchResult, error) {
	query := url.Values{}
	if req.Query != "" {
		query.Set("name", req.Query)
	}
	for _, s := range req.Sources {
		query.Add("sources", s)
	}
	for _, a := range req.Accounts {
		query.Add("accounts", a)
	}

	var out apiv1.SearchResponse
	if err := c.do(ctx, http.MethodGet, "/search", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Accounts lists configured accounts and their connection state.
func (c *Client) Accounts(ctx context.Context) ([]apiv1.AccountStatus, error) {
	var out []apiv1.AccountStatus
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Disconnect deletes the stored token for one account.
func (c *Client) Disconnect(ctx context.Context, provider, alias string) error {
	path := "/accounts/" + url.PathEscape(provider) + "/" + url.PathEscape(alias)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// CreateOAuthSession starts a connect flow for one account.
func (c *Client) CreateOAuthSession(ctx context.Context, provider, alias string) (*apiv1.CreateSessionResponse, error) {
	var out apiv1.CreateSessionResponse
	req := apiv1.CreateSessionRequest{Provider: provider, Alias: alias}
	if err := c.do(ctx, http.MethodPost, "/oauth/sessions", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OAuthSession fetches the status of a connect flow.
func (c *Client) OAuthSession(ctx context.Context, id string) (*apiv1.GetSessionResponse, error) {
	var out apiv1.GetSessionResponse
	if err := c.do(ctx, http.MethodGet, "/oauth/sessions/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitCallback relays a manually pasted authorization code to the
// gateway's callback endpoint, for setups where the browser redirect cannot
// reach the gateway directly.
func (c *Client) SubmitCallback(ctx context.Context, code, state string) error {
	query := url.Values{}
	query.Set("code", code)
	query.Set("state", state)

	u := c.baseURL + apiv1.HttpServerBaseRoute + "/oauth/callback?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	// The callback renders HTML; only the transport result matters here,
	// the session status carries the outcome.
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// Health pings the gateway.
func (c *Client) Health(ctx context.Context) error {
	u := c.baseURL + apiv1.HttpServerBaseRoute + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var status struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&status)
		return &APIError{StatusCode: resp.StatusCode, Message: status.Error}
	}
	return nil
}
