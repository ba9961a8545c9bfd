package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is the only error a caller sees for a bad credential,
	// token or session.
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSessionNotFound = errors.New("session not found")
	ErrRefreshNotFound = errors.New("refresh token not found")
)

// SessionRecord is one logged-in device. Role is copied at login so a role
// change takes effect on the next login.
type SessionRecord struct {
	SID       string
	AccountID uuid.UUID
	Role      string
	ExpiresAt time.Time
}

func (r SessionRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Matches reports whether the access claims were issued for this session.
func (r SessionRecord) Matches(c AccessClaims) bool {
	return r.SID == c.SID && r.AccountID == c.AccountID && r.Role == c.Role
}

type AccessClaims struct {
	AccountID uuid.UUID
	SID       string
	Role      string
	ExpiresAt time.Time
}

// Me is the account summary returned with every token pair. Status lets the
// client offer restore for an account pending deletion.
type Me struct {
	ID     uuid.UUID
	Role   string
	Status string
}

type AuthResult struct {
	AccessToken   string
	RefreshToken  string
	AccessExpires time.Time
	Me            Me
}
