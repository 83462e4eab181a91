// Package identity issues bearer tokens and resolves them back into caller
// profiles through the directory's cache/queue side-channel.
package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridian-social/meridian-users/internal/shared"
)

// DefaultTokenTTL is the token lifetime applied when none is configured.
const DefaultTokenTTL = 365 * 24 * time.Hour

// TokenIssuer signs and validates HS256 bearer tokens whose subject claim
// carries the username.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer constructs a TokenIssuer. A non-positive ttl falls back to
// the default 365 day lifetime.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for the given username.
func (i *TokenIssuer) Issue(username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// Subject validates a token and extracts its subject claim. Any validation
// failure, including a missing subject, maps to ErrUnauthorized.
func (i *TokenIssuer) Subject(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse token: %v: %w", err, shared.ErrUnauthorized)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject: %w", shared.ErrUnauthorized)
	}
	return claims.Subject, nil
}
