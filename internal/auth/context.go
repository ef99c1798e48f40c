package auth

import (
	"context"

	"merita.org/internal/identity"
)

type identityContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, id identity.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the authenticated identity if present.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	if ctx == nil {
		return identity.Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(identity.Identity)
	if !ok || v.ID == "" {
		return identity.Identity{}, false
	}
	return v, true
}

// UserIDFromContext returns the authenticated account id, used by audit
// enrichment.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return "", false
	}
	return id.ID, true
}
