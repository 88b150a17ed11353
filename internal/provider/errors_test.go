package provider

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFromStatus(t *testing.T) {
	t.Run("401 maps to auth error", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusUnauthorized, Header: http.Header{}}
		err := ErrorFromStatus("samsara", resp, "invalid token")

		assert.True(t, IsAuthError(err))
		assert.Contains(t, err.Error(), "samsara")
		assert.Contains(t, err.Error(), "invalid token")
	})

	t.Run("429 maps to rate limit with Retry-After", func(t *testing.T) {
		header := http.Header{}
		header.Set("Retry-After", "30")
		resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: header}
		err := ErrorFromStatus("motive", resp, "")

		retryAfter, ok := IsRateLimitError(err)
		require.True(t, ok)
		assert.Equal(t, 30*time.Second, retryAfter)
	})

	t.Run("429 without Retry-After uses default", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
		err := ErrorFromStatus("motive", resp, "")

		retryAfter, ok := IsRateLimitError(err)
		require.True(t, ok)
		assert.Equal(t, 60*time.Second, retryAfter)
	})

	t.Run("other status maps to api error", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}
		err := ErrorFromStatus("terminal", resp, "upstream down")

		assert.False(t, IsAuthError(err))
		_, ok := IsRateLimitError(err)
		assert.False(t, ok)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	})
}

func TestErrorClassificationThroughWrapping(t *testing.T) {
	// 适配器层会用 %w 包装错误，判定函数必须能透过包装识别
	inner := &AuthError{Provider: "samsara", Message: "expired"}
	wrapped := fmt.Errorf("fetch vehicles: %w", inner)
	assert.True(t, IsAuthError(wrapped))

	rl := &RateLimitError{Provider: "samsara", RetryAfter: 5 * time.Second}
	wrappedRL := fmt.Errorf("fetch drivers: %w", rl)
	retryAfter, ok := IsRateLimitError(wrappedRL)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, retryAfter)
}
