package rbac

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}
var grantsCtxKey = &contextKey{"grants"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// WithGrantsContext caches the caller's resolved PermissionSet so
// downstream handlers avoid a second round trip to the grant tables.
func WithGrantsContext(r context.Context, grants PermissionSet) context.Context {
	return context.WithValue(r, grantsCtxKey, grants)
}

// GetGrants extracts the cached PermissionSet from the standard context
func GetGrants(ctx context.Context) (PermissionSet, bool) {
	raw, ok := ctx.Value(grantsCtxKey).(PermissionSet)
	return raw, ok
}

// GetRouterClaims extracts the AuthClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user" // Default key used by JWT middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// HasRoleInContext reports whether the caller's claims carry the role.
func HasRoleInContext(ctx context.Context, role string) bool {
	claims, ok := GetClaims(ctx)
	if !ok {
		return false
	}
	return claims.HasRole(role)
}

// Can checks the cached grants in the standard context for action:module.
// It returns false when no grants were resolved for the request.
func Can(ctx context.Context, action, module string) bool {
	grants, ok := GetGrants(ctx)
	if !ok {
		return false
	}
	return grants.Can(action, module)
}

// CanFromRouter resolves claims from the router context and checks the
// caller's grants through the provided gate.
func CanFromRouter(ctx router.Context, gate *AccessGate, action, module string) bool {
	claims, ok := GetRouterClaims(ctx, "")
	if !ok {
		return false
	}

	userID, err := ParseUserID(claims.UserID())
	if err != nil {
		return false
	}

	return gate.Authorize(ctx.Context(), userID, AccessRequest{Action: action, Module: module}) == nil
}
