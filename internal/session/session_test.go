package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess := &Session{
		Token:     "tok",
		UserID:    uuid.New(),
		Role:      models.RoleInvestor,
		Email:     "alice@example.com",
		CreatedAt: time.Now().UTC(),
	}

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, sess, time.Minute))

		got, err := store.Get(ctx, "tok")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, sess.UserID, got.UserID)
		assert.Equal(t, models.RoleInvestor, got.Role)
	})

	t.Run("unknown token is nil not error", func(t *testing.T) {
		got, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("expired sessions are gone", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, &Session{Token: "short"}, -time.Second))

		got, err := store.Get(ctx, "short")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, "tok"))

		got, err := store.Get(ctx, "tok")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
