package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	m := NewManager("test-secret-at-least-32-characters!!", "monogest", time.Hour)

	t.Run("round trip", func(t *testing.T) {
		token, err := m.Generate("u1", "client")
		require.NoError(t, err)

		claims, err := m.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.CounterpartyID)
		assert.Equal(t, "client", claims.Kind)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		other := NewManager("another-secret-at-least-32-chars!!!!", "monogest", time.Hour)
		token, err := other.Generate("u1", "client")
		require.NoError(t, err)

		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		short := NewManager("test-secret-at-least-32-characters!!", "monogest", -time.Minute)
		token, err := short.Generate("u1", "client")
		require.NoError(t, err)

		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}
