package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	accountID := uuid.New()

	token, expiresAt, err := m.GenerateAccessToken(accountID, "sid-1", "USER")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AccountID != accountID || claims.SID != "sid-1" || claims.Role != "USER" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expiry mismatch: got %s want %s", claims.ExpiresAt, expiresAt)
	}
}

func TestAccessTokenRejections(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewJWTManager("secret", time.Minute)
	m.now = func() time.Time { return issued }

	token, _, err := m.GenerateAccessToken(uuid.New(), "sid-1", "USER")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := NewJWTManager("another-secret", time.Minute)
	other.now = m.now
	if _, err := other.ParseAccessToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("foreign secret: expected ErrUnauthorized, got %v", err)
	}

	m.now = func() time.Time { return issued.Add(time.Minute + clockLeeway + time.Second) }
	if _, err := m.ParseAccessToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired: expected ErrUnauthorized, got %v", err)
	}

	m.now = func() time.Time { return issued.Add(time.Minute + clockLeeway/2) }
	if _, err := m.ParseAccessToken(token); err != nil {
		t.Fatalf("within leeway: %v", err)
	}
}

func TestGenerateAccessTokenValidatesPayload(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	if _, _, err := m.GenerateAccessToken(uuid.Nil, "sid", "USER"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := NewJWTManager("", time.Minute).GenerateAccessToken(uuid.New(), "sid", "USER"); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestRandomTokensAreURLSafe(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 32; i++ {
		tok, err := NewRefreshToken()
		if err != nil {
			t.Fatalf("refresh token: %v", err)
		}
		if len(tok) != 43 {
			t.Fatalf("unexpected length %d for %q", len(tok), tok)
		}
		for _, r := range tok {
			if r == '+' || r == '/' || r == '=' {
				t.Fatalf("token %q is not url safe", tok)
			}
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = struct{}{}
	}
}
