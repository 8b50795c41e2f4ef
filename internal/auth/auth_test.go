// internal/auth/auth_test.go
package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("correct horse battery staple", hash))
	assert.False(t, CheckPasswordHash("wrong password", hash))
}

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, APIKeyPrefix))
	assert.Greater(t, len(key), len(APIKeyPrefix)+32, "key carries enough entropy")

	other, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	// Hashing is deterministic so lookups can match stored digests.
	assert.Equal(t, HashAPIKey(key), HashAPIKey(key))
	assert.NotEqual(t, HashAPIKey(key), HashAPIKey(other))
}

func TestJWTRoundTrip(t *testing.T) {
	secret := "unit-test-secret"
	token, err := GenerateJWT("user-123", "ADMIN", secret, time.Minute)
	require.NoError(t, err)

	principal, err := ValidateJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", principal.UserID)
	assert.Equal(t, "ADMIN", principal.Role)
	assert.False(t, principal.IsAPIKey())
}

func TestValidateJWTRejectsBadInput(t *testing.T) {
	secret := "unit-test-secret"

	_, err := ValidateJWT("not-a-token", secret)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	token, err := GenerateJWT("user-123", "USER", secret, time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT(token, "different-secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired, err := GenerateJWT("user-123", "USER", secret, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT(expired, secret)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
