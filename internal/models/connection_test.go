package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenExpiringWithin(t *testing.T) {
	horizon := 5 * time.Minute

	t.Run("no expiry recorded", func(t *testing.T) {
		conn := &Connection{}
		assert.False(t, conn.TokenExpiringWithin(horizon))
	})

	t.Run("expiry far away", func(t *testing.T) {
		expires := time.Now().Add(time.Hour)
		conn := &Connection{TokenExpiresAt: &expires}
		assert.False(t, conn.TokenExpiringWithin(horizon))
	})

	t.Run("expiry inside horizon", func(t *testing.T) {
		expires := time.Now().Add(2 * time.Minute)
		conn := &Connection{TokenExpiresAt: &expires}
		assert.True(t, conn.TokenExpiringWithin(horizon))
	})

	t.Run("already expired", func(t *testing.T) {
		expires := time.Now().Add(-time.Minute)
		conn := &Connection{TokenExpiresAt: &expires}
		assert.True(t, conn.TokenExpiringWithin(horizon))
	})
}
