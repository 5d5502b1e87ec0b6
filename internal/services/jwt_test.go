package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniapp-games/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := services.NewJWTService("secret", time.Hour)

	token, sessionID, err := svc.GenerateToken(testUserID)
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, testUserID, claims.UserID)
	assert.Equal(t, sessionID, claims.SessionID)
	assert.Equal(t, "777", claims.Subject)
}

func TestJWTRejectsForeignAndExpiredTokens(t *testing.T) {
	token, _, err := services.NewJWTService("other", time.Hour).GenerateToken(testUserID)
	require.NoError(t, err)
	_, err = services.NewJWTService("secret", time.Hour).ValidateToken(token)
	assert.Error(t, err)

	expired, _, err := services.NewJWTService("secret", -time.Minute).GenerateToken(testUserID)
	require.NoError(t, err)
	_, err = services.NewJWTService("secret", time.Hour).ValidateToken(expired)
	assert.Error(t, err)

	_, err = services.NewJWTService("secret", time.Hour).ValidateToken("garbage")
	assert.Error(t, err)
}
