package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apiv1 "github.com/docsift/docsift/pkg/api/v1"
	"github.com/docsift/docsift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "budget", r.URL.Query().Get("name"))
		assert.Equal(t, []string{"local", "google-drive"}, r.URL.Query()["sources"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"results":[
			{"id":"local:/docs/budget.pdf","title":"budget.pdf","source":"local","account":"","modified":1750000000000,"size":2048}
		],"count":1}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok-1")
	results, err := client.Search(context.Background(), types.SearchRequest{
		Query:   "budget",
		Sources: []string{"local", "google-drive"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "budget.pdf", results[0].Title)
	require.NotNil(t, results[0].Size)
	assert.Equal(t, int64(2048), *results[0].Size)
}

func TestClientOmitsAuthHeaderWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"success":true,"data":{"results":[],"count":0}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Search(context.Background(), types.SearchRequest{Query: "x"})
	require.NoError(t, err)
}

func TestClientSurfacesGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"success":false,"error":"unknown source: dropbox"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Search(context.Background(), types.SearchRequest{Query: "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "unknown source: dropbox", apiErr.Message)
	assert.Equal(t, "unknown source: dropbox", apiErr.Error())
}

func TestClientHandlesMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>this is not the gateway</html>`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Search(context.Background(), types.SearchRequest{Query: "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, "gateway returned 200", apiErr.Error(), "message-less errors fall back to the status code")
}

func TestClientAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts", r.URL.Path)
		fmt.Fprint(w, `{"success":true,"data":[
			{"provider":"google","alias":"work","connected":true,"email":"ana@example.com","expires_at":1750000000000},
			{"provider":"microsoft","alias":"corp","connected":false}
		]}`)
	}))
	defer srv.Close()

	statuses, err := NewClient(srv.URL, "").Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "ana@example.com", statuses[0].Email)
	assert.True(t, statuses[0].Connected)
	assert.False(t, statuses[1].Connected)
}

func TestClientDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/accounts/google/work", r.URL.Path)
		fmt.Fprint(w, `{"success":true,"data":{"disconnected":true}}`)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").Disconnect(context.Background(), "google", "work")
	require.NoError(t, err)
}

func TestClientCreateOAuthSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/oauth/sessions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req apiv1.CreateSessionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "google", req.Provider)
		assert.Equal(t, "work", req.Alias)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"success":true,"data":{"session_id":"s1","authorize_url":"https://auth.example.test/a"}}`)
	}))
	defer srv.Close()

	session, err := NewClient(srv.URL, "").CreateOAuthSession(context.Background(), "google", "work")
	require.NoError(t, err)
	assert.Equal(t, "s1", session.SessionID)
	assert.Equal(t, "https://auth.example.test/a", session.AuthorizeURL)
}

func TestClientOAuthSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/oauth/sessions/s1", r.URL.Path)
		fmt.Fprint(w, `{"success":true,"data":{"status":"complete","email":"ana@example.com"}}`)
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL, "").OAuthSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "complete", status.Status)
	assert.Equal(t, "ana@example.com", status.Email)
}

func TestClientSubmitCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/oauth/callback", r.URL.Path)
		assert.Equal(t, "4-abc", r.URL.Query().Get("code"))
		assert.Equal(t, "st-1", r.URL.Query().Get("state"))
		fmt.Fprint(w, "<html>Connected</html>")
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").SubmitCallback(context.Background(), "4-abc", "st-1")
	require.NoError(t, err)
}

func TestClientHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/health", r.URL.Path)
			fmt.Fprint(w, `{"status":"ok"}`)
		}))
		defer srv.Close()

		assert.NoError(t, NewClient(srv.URL, "").Health(context.Background()))
	})

	t.Run("store outage", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"status":"not ok","error":"redis: connection refused"}`)
		}))
		defer srv.Close()

		err := NewClient(srv.URL, "").Health(context.Background())
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Equal(t, "redis: connection refused", apiErr.Message)
	})
}
