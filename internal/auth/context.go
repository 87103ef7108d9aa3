package auth

import (
	"context"
	"slices"
	"time"
)

// Identity is the authenticated caller attached to a request context. It
// is derived solely from a verified access token, so Roles are a snapshot
// taken at issuance.
type Identity struct {
	Subject   string
	Roles     []Role
	ExpiresAt time.Time
	TokenID   string
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role Role) bool {
	return id != nil && slices.Contains(id.Roles, role)
}

// HasAnyRole reports whether the identity carries at least one of roles.
func (id *Identity) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if id.HasRole(r) {
			return true
		}
	}
	return false
}

// Can reports whether any of the identity's roles grants perm.
func (id *Identity) Can(perm Permission) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if HasPermission(r, perm) {
			return true
		}
	}
	return false
}

type identityKey struct{}

// WithIdentity returns a context carrying id. If ctx already carries an
// identity it is returned unchanged: an established identity is never
// replaced further down the chain.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	if id == nil {
		return ctx
	}
	if _, ok := IdentityFromContext(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
