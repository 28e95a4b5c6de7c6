package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := NewAccessToken(userID, "a@b.co", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "a@b.co", claims.Email)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	userID := uuid.New()

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewAccessToken(userID, "a@b.co", "secret", time.Hour)
		require.NoError(t, err)
		_, err = ParseAccessToken(token, "other")
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := NewAccessToken(userID, "a@b.co", "secret", -time.Minute)
		require.NoError(t, err)
		_, err = ParseAccessToken(token, "secret")
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("missing user", func(t *testing.T) {
		token, err := NewAccessToken(uuid.Nil, "a@b.co", "secret", time.Hour)
		require.NoError(t, err)
		_, err = ParseAccessToken(token, "secret")
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseAccessToken("not.a.token", "secret")
		assert.ErrorIs(t, err, jwt.ErrTokenMalformed)
	})
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)

	ok, err := CheckPasswordHash("hunter22", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPasswordHash("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserContext(t *testing.T) {
	_, ok := GetUserIDFromContext(context.Background())
	assert.False(t, ok)

	id := uuid.New()
	ctx := WithUser(context.Background(), id, "a@b.co")
	got, ok := GetUserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	email, ok := GetEmailFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "a@b.co", email)
}
