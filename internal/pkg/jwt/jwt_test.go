package jwt

import (
	"testing"

	"shelfshare/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateAccessToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", AccessTokenMins: 60}

	token, err := GenerateAccessToken(42, "alice", cfg)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateAccessToken(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", AccessTokenMins: 60}

	token, err := GenerateAccessToken(42, "alice", cfg)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, config.JWTConfig{Secret: "other-secret"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessTokenExpired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", AccessTokenMins: -1}

	token, err := GenerateAccessToken(42, "alice", cfg)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, cfg)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateAccessTokenGarbage(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret"}

	_, err := ValidateAccessToken("not-a-token", cfg)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
