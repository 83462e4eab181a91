package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridian-social/meridian-users/internal/shared"
)

func TestIssueAndSubjectRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("top-secret", time.Hour)

	token, err := issuer.Issue("alice01")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	subject, err := issuer.Subject(token)
	if err != nil {
		t.Fatalf("subject: %v", err)
	}
	if subject != "alice01" {
		t.Fatalf("expected subject alice01, got %s", subject)
	}
}

func TestSubjectRejectsForeignSignature(t *testing.T) {
	token, err := NewTokenIssuer("secret-a", time.Hour).Issue("alice01")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = NewTokenIssuer("secret-b", time.Hour).Subject(token)
	if !errors.Is(err, shared.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSubjectRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("top-secret", -time.Hour)
	issuer.ttl = -time.Hour

	token, err := issuer.Issue("alice01")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Subject(token); !errors.Is(err, shared.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSubjectRejectsTokenWithoutSubject(t *testing.T) {
	issuer := NewTokenIssuer("top-secret", time.Hour)

	// Validly signed with the issuer's own secret, but no subject claim.
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("top-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := issuer.Subject(signed); !errors.Is(err, shared.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for subjectless token, got %v", err)
	}
}

func TestSubjectRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer("top-secret", time.Hour)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := issuer.Subject(token); !errors.Is(err, shared.ErrUnauthorized) {
			t.Fatalf("token %q: expected ErrUnauthorized, got %v", token, err)
		}
	}
}

func TestTTLDefaultsWhenUnset(t *testing.T) {
	if got := NewTokenIssuer("s", 0).TTL(); got != DefaultTokenTTL {
		t.Fatalf("expected default ttl, got %v", got)
	}
	if got := NewTokenIssuer("s", time.Minute).TTL(); got != time.Minute {
		t.Fatalf("expected configured ttl, got %v", got)
	}
}
