package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/fleetbridge/internal/provider"
)

func newTestClient(serverURL string) *Client {
	c := New(Config{
		PublicKey: "pk_test",
		SecretKey: "sk_test",
		APIHost:   serverURL,
	})
	c.SetTokens("conn-token", "")
	return c
}

func TestExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tokens/exchange", r.URL.Path)
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "public-token-123", req["publicToken"])

		fmt.Fprint(w, `{"connectionToken":"ct-456"}`)
	}))
	defer server.Close()

	client := New(Config{PublicKey: "pk_test", SecretKey: "sk_test", APIHost: server.URL})
	tokens, err := client.ExchangeCode(context.Background(), "public-token-123", "")
	require.NoError(t, err)
	assert.Equal(t, "ct-456", tokens.AccessToken)
	// connection token 长期有效
	assert.Equal(t, 365*24*3600, tokens.ExpiresIn)
}

func TestConnectionTokenHeaderSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "conn-token", r.Header.Get("Connection-Token"))
		fmt.Fprint(w, `{"companyName":"Acme Trucking","provider":"geotab","status":"active"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.VerifyConnection(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "Acme Trucking", result.CompanyName)
	// 底层服务商名称透传到 label
	assert.Equal(t, "Terminal (geotab)", result.ProviderLabel)
}

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	// 连续失败触发熔断
	for i := 0; i < 5; i++ {
		_, err := client.VerifyConnection(ctx)
		require.Error(t, err)
	}

	_, err := client.VerifyConnection(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	// 熔断后不再打到上游
	assert.Equal(t, int32(5), hits.Load())
}

func TestPassthroughForwardsPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/passthrough/custom/endpoint", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		fmt.Fprint(w, `{"raw":"response"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	body, err := client.Passthrough(context.Background(), "POST", "/custom/endpoint", []byte(`{"x":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw":"response"}`, string(body))
}

func TestFetchFuelPurchasesNotSupported(t *testing.T) {
	client := newTestClient("http://unused")
	_, err := client.FetchFuelPurchases(context.Background(), time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, provider.ErrNotSupported))
}

func TestUnauthenticatedRequestFailsFast(t *testing.T) {
	client := New(Config{PublicKey: "pk_test", SecretKey: "sk_test", APIHost: "http://unused"})
	_, err := client.FetchVehicles(context.Background())
	assert.True(t, provider.IsAuthError(err))
}

func TestCursorPaginationExhausted(t *testing.T) {
	var cursors []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		switch cursor {
		case "":
			fmt.Fprint(w, `{"results":[{"id":"v1","name":"Truck 1"}],"next":"n1"}`)
		case "n1":
			fmt.Fprint(w, `{"results":[{"id":"v2","name":"Truck 2"}],"next":""}`)
		default:
			t.Fatalf("unexpected cursor %q", cursor)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	vehicles, err := client.FetchVehicles(context.Background())
	require.NoError(t, err)
	assert.Len(t, vehicles, 2)
	assert.Equal(t, []string{"", "n1"}, cursors)
}
