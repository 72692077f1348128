package auth

import (
	"testing"
	"time"

	"chat-relay/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(secret string) *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: []byte(secret), ExpiresIn: time.Hour},
	}
}

func TestGuestTokenRoundTrip(t *testing.T) {
	s := NewService(testConfig("test-secret"))

	token, err := s.IssueGuestToken("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	username, err := s.UsernameFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestIssueRequiresUsername(t *testing.T) {
	s := NewService(testConfig("test-secret"))
	_, err := s.IssueGuestToken("   ")
	assert.Error(t, err)
}

func TestTokenFromWrongSecretRejected(t *testing.T) {
	issuer := NewService(testConfig("secret-a"))
	verifier := NewService(testConfig("secret-b"))

	token, err := issuer.IssueGuestToken("alice")
	require.NoError(t, err)

	_, err = verifier.UsernameFromToken(token)
	assert.Error(t, err)
}

func TestDisabledWithoutSecret(t *testing.T) {
	s := NewService(testConfig(""))
	assert.False(t, s.Enabled())

	_, err := s.IssueGuestToken("alice")
	assert.Error(t, err)
	_, err = s.UsernameFromToken("whatever")
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	s := NewService(testConfig("test-secret"))
	_, err := s.UsernameFromToken("not-a-token")
	assert.Error(t, err)
}
