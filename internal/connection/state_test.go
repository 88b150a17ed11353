package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/fleetbridge/internal/models"
)

func TestLifecycleTransitions(t *testing.T) {
	cases := []struct {
		name    string
		current string
		event   string
		want    string
	}{
		{"authorize from fresh", models.ConnectionStatusUnauthenticated, EventAuthorize, models.ConnectionStatusActive},
		{"reauthorize after disconnect", models.ConnectionStatusDisconnected, EventAuthorize, models.ConnectionStatusActive},
		{"verify ok recovers error", models.ConnectionStatusError, EventVerifyOK, models.ConnectionStatusActive},
		{"verify ok recovers expired", models.ConnectionStatusTokenExpired, EventVerifyOK, models.ConnectionStatusActive},
		{"verify failed marks error", models.ConnectionStatusActive, EventVerifyFailed, models.ConnectionStatusError},
		{"refresh failed marks expired", models.ConnectionStatusActive, EventRefreshFailed, models.ConnectionStatusTokenExpired},
		{"repeated refresh failure stays expired", models.ConnectionStatusTokenExpired, EventRefreshFailed, models.ConnectionStatusTokenExpired},
		{"disconnect from active", models.ConnectionStatusActive, EventDisconnect, models.ConnectionStatusDisconnected},
		{"disconnect from error", models.ConnectionStatusError, EventDisconnect, models.ConnectionStatusDisconnected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := transition(tc.current, tc.event)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLifecycleRejectsInvalidTransitions(t *testing.T) {
	cases := []struct {
		name    string
		current string
		event   string
	}{
		{"verify ok before authorization", models.ConnectionStatusUnauthenticated, EventVerifyOK},
		{"refresh failed after disconnect", models.ConnectionStatusDisconnected, EventRefreshFailed},
		{"double disconnect", models.ConnectionStatusDisconnected, EventDisconnect},
		{"verify failed after disconnect", models.ConnectionStatusDisconnected, EventVerifyFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := transition(tc.current, tc.event)
			require.Error(t, err)
			// 失败时保持原状态
			assert.Equal(t, tc.current, got)
		})
	}
}

func TestLifecycleDefaultsToUnauthenticated(t *testing.T) {
	got, err := transition("", EventAuthorize)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusActive, got)
}
