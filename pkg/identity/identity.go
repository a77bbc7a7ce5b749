// Package identity resolves the caller of every operation to an internal
// user record and keeps user rows in sync with the external identity
// provider.
package identity

import (
	"context"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
)

// Identity is what the external provider asserts about a caller
type Identity struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

// Resolver maps the caller credential carried by ctx to an Identity. It
// returns nil, nil when there is no caller.
type Resolver interface {
	ResolveCaller(ctx context.Context) (*Identity, error)
}

// Authenticator resolves the caller to a user record or fails with an
// unauthenticated error
type Authenticator interface {
	Authenticate(ctx context.Context) (*models.User, error)
}

type ctxKey int

const (
	identityKey ctxKey = iota
	tokenKey
)

// WithIdentity attaches an already verified identity to ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// WithToken attaches a raw bearer token to ctx for JWTResolver
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFrom returns the bearer token attached to ctx, if any
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// ContextResolver trusts the identity the transport placed on the context
type ContextResolver struct{}

// ResolveCaller implements Resolver
func (ContextResolver) ResolveCaller(ctx context.Context) (*Identity, error) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.ExternalID == "" {
		return nil, nil
	}
	return &id, nil
}
