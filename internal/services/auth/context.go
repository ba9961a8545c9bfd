package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type ctxKey struct{}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	AccountID uuid.UUID
	SID       string
	Role      string
}

// HasRole reports whether the identity holds one of roles, ignoring case.
func (i Identity) HasRole(roles ...string) bool {
	for _, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), i.Role) {
			return true
		}
	}
	return false
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || identity.AccountID == uuid.Nil {
		return Identity{}, false
	}
	return identity, true
}
