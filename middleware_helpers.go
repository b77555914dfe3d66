package rbac

import (
	"context"

	"github.com/goliatone/go-rbac/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use rbac helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter adapts jwtware.AuthClaims to rbac.AuthClaims and stores
// the claims in the standard context for downstream handler usage.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, authClaims)
}

// GrantEnricherAdapter returns a ContextEnricher that additionally resolves
// the caller's effective grants through the gate and caches them in the
// context, so handlers can call Can without touching storage.
func GrantEnricherAdapter(gate *AccessGate) func(context.Context, jwtware.AuthClaims) context.Context {
	return func(c context.Context, claims jwtware.AuthClaims) context.Context {
		c = ContextEnricherAdapter(c, claims)

		userID, err := ParseUserID(claims.UserID())
		if err != nil {
			return c
		}

		grants, err := gate.PermissionsOf(c, userID)
		if err != nil {
			return c
		}

		return WithGrantsContext(c, grants)
	}
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}
