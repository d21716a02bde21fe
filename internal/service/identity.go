package service

import (
	"context"

	"tasksync/internal/domain"
	"tasksync/internal/logger"
)

// IdentityProvider resolves the user behind a request. Absence and lookup
// failures both mean anonymous.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (*domain.User, bool)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type claimsKey struct{}

// WithClaims attaches verified token claims to ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// TokenIdentity trusts the claims placed on the context by the JWT
// middleware. With a non-nil users lookup the user must also still exist.
type TokenIdentity struct {
	users UserLookup
}

func NewTokenIdentity(users UserLookup) *TokenIdentity {
	return &TokenIdentity{users: users}
}

func (p *TokenIdentity) CurrentUser(ctx context.Context) (*domain.User, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}
	if p.users == nil {
		return &domain.User{ID: claims.UserID, Email: claims.Email, Name: claims.Name}, true
	}

	u, err := p.users.GetByID(ctx, claims.UserID)
	if err != nil {
		logger.WithContext(ctx).Debug("identity lookup failed", "user_id", claims.UserID, "error", err)
		return nil, false
	}
	return u, true
}
