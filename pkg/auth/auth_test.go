package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newValidator(t *testing.T) *JWTValidator {
	t.Helper()
	v, err := NewJWTValidator(JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     testSecret,
		Issuer:        "todo-app",
		Audience:      []string{"todo-web"},
	})
	require.NoError(t, err)
	return v
}

func TestJWTValidator_RoundTrip(t *testing.T) {
	gen := NewJWTGenerator(testSecret, "todo-app", []string{"todo-web"}, time.Hour)
	token, err := gen.GenerateToken("sub-1", "alice@example.com", "alice")
	require.NoError(t, err)

	claims, err := newValidator(t).ValidateToken("Bearer " + token)

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "alice", claims.Username())
	assert.Equal(t, "sub-1", NewUserContext(claims).UserID)
}

func TestJWTValidator_Rejects(t *testing.T) {
	v := newValidator(t)

	t.Run("missing", func(t *testing.T) {
		_, err := v.ValidateToken("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := NewJWTGenerator(testSecret, "todo-app", []string{"todo-web"}, -time.Minute).
			GenerateToken("sub-1", "alice@example.com", "alice")
		require.NoError(t, err)
		_, err = v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewJWTGenerator("other", "todo-app", []string{"todo-web"}, time.Hour).
			GenerateToken("sub-1", "alice@example.com", "alice")
		require.NoError(t, err)
		_, err = v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token, err := NewJWTGenerator(testSecret, "todo-app", []string{"elsewhere"}, time.Hour).
			GenerateToken("sub-1", "alice@example.com", "alice")
		require.NoError(t, err)
		_, err = v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})
}

func TestClaims_Username(t *testing.T) {
	assert.Equal(t, "pref", (&Claims{PreferredUsername: "pref", CognitoUsername: "cog", Name: "n"}).Username())
	assert.Equal(t, "cog", (&Claims{CognitoUsername: "cog", Name: "n"}).Username())
	assert.Equal(t, "n", (&Claims{Name: "n"}).Username())
	assert.Equal(t, UnknownUsername, (&Claims{}).Username())
}

func TestUsernameFromContext(t *testing.T) {
	assert.Equal(t, "", UsernameFromContext(context.Background()))

	ctx := SetUserInContext(context.Background(), &UserContext{Username: "alice"})
	assert.Equal(t, "alice", UsernameFromContext(ctx))
}

func TestTokenBucketLimiter(t *testing.T) {
	l := NewTokenBucketLimiter(2, time.Hour)
	defer l.Stop()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "alice")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "bob")
	assert.True(t, ok)

	require.NoError(t, l.Reset(ctx, "alice"))
	ok, _ = l.Allow(ctx, "alice")
	assert.True(t, ok)
}

func TestPrefixedLimiter(t *testing.T) {
	inner := NewTokenBucketLimiter(1, time.Hour)
	defer inner.Stop()
	a := NewPrefixedLimiter("ip", inner)
	b := NewPrefixedLimiter("user", inner)
	ctx := context.Background()

	ok, _ := a.Allow(ctx, "x")
	assert.True(t, ok)
	ok, _ = b.Allow(ctx, "x")
	assert.True(t, ok)
	ok, _ = a.Allow(ctx, "x")
	assert.False(t, ok)
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisRateLimiter(client, 2, time.Hour)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "alice")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "alice")
	assert.False(t, ok)

	require.NoError(t, l.Reset(ctx, "alice"))
	ok, _ = l.Allow(ctx, "alice")
	assert.True(t, ok)
}
