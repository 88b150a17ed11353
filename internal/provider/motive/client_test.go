package motive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func TestFetchVehiclesExhaustsPageNumberPagination(t *testing.T) {
	var pages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/vehicles", r.URL.Path)
		pageNo := r.URL.Query().Get("page_no")
		pages = append(pages, pageNo)

		switch pageNo {
		case "1":
			fmt.Fprint(w, `{"vehicles":[{"vehicle":{"id":1,"number":"T-1","vin":"VIN001"}},{"vehicle":{"id":2,"number":"T-2","vin":"VIN002"}}],"pagination":{"per_page":100,"page_no":1,"total":3}}`)
		case "2":
			fmt.Fprint(w, `{"vehicles":[{"vehicle":{"id":3,"number":"T-3","vin":"VIN003"}}],"pagination":{"per_page":100,"page_no":2,"total":3}}`)
		default:
			t.Fatalf("unexpected page_no %q", pageNo)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	vehicles, err := client.FetchVehicles(context.Background())
	require.NoError(t, err)

	assert.Len(t, vehicles, 3)
	assert.Equal(t, []string{"1", "2"}, pages)
	assert.Equal(t, "1", vehicles[0].ExternalID)
	assert.Equal(t, "T-3", vehicles[2].Name)
}

func TestFetchVehiclesStopsOnEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// total 虚高，空页必须终止循环
		fmt.Fprint(w, `{"vehicles":[],"pagination":{"per_page":100,"page_no":1,"total":9999}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	vehicles, err := client.FetchVehicles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vehicles)
}

func TestSpeedConvertedFromKph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"vehicles":[{"vehicle":{"id":1,"current_location":{"id":7,"lat":32.7,"lon":-96.8,"speed":100,"located_at":"2025-06-01T12:00:00Z"}}}],"pagination":{"per_page":100,"page_no":1,"total":1}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	locations, err := client.FetchCurrentLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, locations, 1)
	require.NotNil(t, locations[0].SpeedMph)
	assert.InDelta(t, 62.1371, *locations[0].SpeedMph, 0.001)
}

func TestFetchFuelPurchasesNotSupported(t *testing.T) {
	client := newTestClient("http://unused")
	_, err := client.FetchFuelPurchases(context.Background(), time.Now().Add(-time.Hour), time.Now())
	assert.True(t, errors.Is(err, provider.ErrNotSupported))
}

func TestCapabilitiesExcludeUnsupportedDomains(t *testing.T) {
	client := newTestClient("http://unused")
	assert.False(t, provider.Supports(client, provider.CapFuelPurchases))
	assert.False(t, provider.Supports(client, provider.CapGPSFeed))
	assert.True(t, provider.Supports(client, provider.CapHOS))
	assert.True(t, provider.Supports(client, provider.CapIFTA))
}

func TestVerifyConnectionInvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.VerifyConnection(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Valid)
}
