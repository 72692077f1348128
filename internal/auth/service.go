// Package auth issues and validates short-lived guest identity tokens. A
// token only binds a display username; the authoritative identity
// announcement remains the user_join event on the socket.
package auth

import (
	"fmt"
	"strings"
	"time"

	"chat-relay/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

type Service struct {
	cfg *config.Config
}

func NewService(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

// Enabled reports whether token issuance is configured. Without a secret the
// relay accepts anonymous connections only, which is a valid deployment.
func (s *Service) Enabled() bool {
	return len(s.cfg.JWT.Secret) > 0
}

// IssueGuestToken signs a token for the given display username.
func (s *Service) IssueGuestToken(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("username is required")
	}
	if !s.Enabled() {
		return "", fmt.Errorf("guest tokens are not configured")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.JWT.ExpiresIn).Unix(),
	})

	signed, err := token.SignedString(s.cfg.JWT.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// UsernameFromToken validates the token and returns the username claim.
func (s *Service) UsernameFromToken(tokenString string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("guest tokens are not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
