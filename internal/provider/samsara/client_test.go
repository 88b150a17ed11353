package samsara

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/fleetbridge/internal/provider"
)

func newTestClient(serverURL string) *Client {
	c := New(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		AuthHost:     serverURL,
		APIHost:      serverURL,
	})
	c.SetTokens("test-token", "test-refresh")
	return c
}

func TestFetchVehiclesExhaustsCursorPagination(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fleet/vehicles", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		cursor := r.URL.Query().Get("after")
		requests = append(requests, cursor)

		switch cursor {
		case "":
			fmt.Fprint(w, `{"data":[{"id":"v1","name":"Truck 1","vin":"VIN001"}],"pagination":{"endCursor":"c1","hasNextPage":true}}`)
		case "c1":
			fmt.Fprint(w, `{"data":[{"id":"v2","name":"Truck 2","vin":"VIN002"}],"pagination":{"endCursor":"c2","hasNextPage":true}}`)
		case "c2":
			fmt.Fprint(w, `{"data":[{"id":"v3","name":"Truck 3","vin":"VIN003"}],"pagination":{"endCursor":"","hasNextPage":false}}`)
		default:
			t.Fatalf("unexpected cursor %q", cursor)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	vehicles, err := client.FetchVehicles(context.Background())
	require.NoError(t, err)

	assert.Len(t, vehicles, 3)
	assert.Equal(t, []string{"", "c1", "c2"}, requests)
	assert.Equal(t, "v1", vehicles[0].ExternalID)
	assert.Equal(t, "VIN003", vehicles[2].VIN)
}

func TestFetchVehiclesStopsAtPageCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 游标永远指向下一页，分页上限必须兜住
		fmt.Fprint(w, `{"data":[{"id":"v","name":"loop"}],"pagination":{"endCursor":"again","hasNextPage":true}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchVehicles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pagination exceeded")
}

func TestVerifyConnection(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/me", r.URL.Path)
			fmt.Fprint(w, `{"data":{"name":"Acme Trucking","id":"org1"}}`)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.VerifyConnection(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, "Acme Trucking", result.CompanyName)
	})

	t.Run("invalid token reports valid=false without error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.VerifyConnection(context.Background())
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})
}

func TestExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/token", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	tokens, err := client.ExchangeCode(context.Background(), "the-code", "http://localhost/callback")
	require.NoError(t, err)
	assert.Equal(t, "new-access", tokens.AccessToken)
	assert.Equal(t, "new-refresh", tokens.RefreshToken)
	assert.Equal(t, 3600, tokens.ExpiresIn)
}

func TestRateLimitSurfacesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchDrivers(context.Background())
	require.Error(t, err)

	retryAfter, ok := provider.IsRateLimitError(err)
	require.True(t, ok)
	assert.Equal(t, "12s", retryAfter.String())
}

func TestUnauthenticatedRequestFailsFast(t *testing.T) {
	client := New(Config{ClientID: "cid", ClientSecret: "secret"})
	_, err := client.FetchVehicles(context.Background())
	require.Error(t, err)
	assert.True(t, provider.IsAuthError(err))
}
