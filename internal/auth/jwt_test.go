package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	mgr := NewJWTManager("test-secret-at-least-32-characters!!")
	userID := uuid.New()
	sessionID := uuid.New()

	token, err := mgr.Issue(userID, sessionID, "jane@example.com", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, sessionID, claims.SessionID)
	assert.Equal(t, "jane@example.com", claims.Email)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	mgr := NewJWTManager("test-secret-at-least-32-characters!!")
	other := NewJWTManager("a-completely-different-signing-key!!")

	token, err := mgr.Issue(uuid.New(), uuid.New(), "", time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	mgr := NewJWTManager("test-secret-at-least-32-characters!!")

	token, err := mgr.Issue(uuid.New(), uuid.New(), "", -time.Minute)
	require.NoError(t, err)

	_, err = mgr.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	mgr := NewJWTManager("test-secret-at-least-32-characters!!")
	_, err := mgr.Verify("not.a.token")
	assert.Error(t, err)
}

func TestGenerateRefreshToken(t *testing.T) {
	token, hash, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Len(t, hash, 64) // sha256 hex
	assert.Equal(t, hash, HashRefreshToken(token))

	token2, hash2, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
	assert.NotEqual(t, hash, hash2)
}
