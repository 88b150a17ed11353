package connection

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	token, err := NewState(42, "samsara")
	require.NoError(t, err)

	state, err := ParseState(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), state.UserID)
	assert.Equal(t, "samsara", state.ProviderID)
	assert.NotEmpty(t, state.Nonce)
}

func TestStateNonceUnique(t *testing.T) {
	a, err := NewState(1, "motive")
	require.NoError(t, err)
	b, err := NewState(1, "motive")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParseStateRejectsExpired(t *testing.T) {
	data, err := json.Marshal(OAuthState{
		UserID:     7,
		ProviderID: "terminal",
		Nonce:      "n",
		IssuedAt:   time.Now().Add(-StateTTL - time.Minute),
	})
	require.NoError(t, err)

	_, err = ParseState(base64.RawURLEncoding.EncodeToString(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestParseStateRejectsMalformed(t *testing.T) {
	_, err := ParseState("not base64 !!!")
	require.Error(t, err)

	_, err = ParseState(base64.RawURLEncoding.EncodeToString([]byte("not json")))
	require.Error(t, err)
}

func TestParseStateRejectsIncomplete(t *testing.T) {
	data, err := json.Marshal(OAuthState{ProviderID: "samsara", Nonce: "n", IssuedAt: time.Now()})
	require.NoError(t, err)

	_, err = ParseState(base64.RawURLEncoding.EncodeToString(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")
}
