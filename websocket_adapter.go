package rbac

import (
	"context"

	"github.com/goliatone/go-router"
)

// WSTokenValidator implements go-router's WSTokenValidator interface
// using the TokenService, with permission checks resolved through the
// grant tables when a gate is provided.
type WSTokenValidator struct {
	tokenService TokenService
	gate         *AccessGate
	rolePriority []string
}

// NewWSTokenValidator creates a new WebSocket token validator using the provided TokenService
func NewWSTokenValidator(tokenService TokenService, gate *AccessGate, priority []string) *WSTokenValidator {
	if len(priority) == 0 {
		priority = DefaultRolePriority
	}
	return &WSTokenValidator{
		tokenService: tokenService,
		gate:         gate,
		rolePriority: priority,
	}
}

// Validate validates a token string and returns WebSocket-compatible auth claims
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	claims, err := w.tokenService.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	adapter := &WSAuthClaimsAdapter{claims: claims, priority: w.rolePriority}

	if w.gate != nil {
		userID, err := ParseUserID(claims.UserID())
		if err == nil {
			if grants, err := w.gate.PermissionsOf(context.Background(), userID); err == nil {
				adapter.grants = grants
			}
		}
	}

	return adapter, nil
}

// WSAuthClaimsAdapter adapts AuthClaims to go-router's WSAuthClaims interface
type WSAuthClaimsAdapter struct {
	claims   AuthClaims
	grants   PermissionSet
	priority []string
}

// Subject returns the subject claim
func (w *WSAuthClaimsAdapter) Subject() string {
	return w.claims.Subject()
}

// UserID returns the user ID
func (w *WSAuthClaimsAdapter) UserID() string {
	return w.claims.UserID()
}

// Role returns the highest-priority role in the claims
func (w *WSAuthClaimsAdapter) Role() string {
	return w.claims.TopRole(w.priority)
}

// CanRead checks if the user holds a read grant for the module
func (w *WSAuthClaimsAdapter) CanRead(resource string) bool {
	return w.grants.Can("read", resource)
}

// CanEdit checks if the user holds an update grant for the module
func (w *WSAuthClaimsAdapter) CanEdit(resource string) bool {
	return w.grants.Can("update", resource)
}

// CanCreate checks if the user holds a create grant for the module
func (w *WSAuthClaimsAdapter) CanCreate(resource string) bool {
	return w.grants.Can("create", resource)
}

// CanDelete checks if the user holds a delete grant for the module
func (w *WSAuthClaimsAdapter) CanDelete(resource string) bool {
	return w.grants.Can("delete", resource)
}

// HasRole checks if the user has a specific role
func (w *WSAuthClaimsAdapter) HasRole(role string) bool {
	return w.claims.HasRole(role)
}

// IsAtLeast checks if the user's best role ranks at or above minRole
// in the configured priority list.
func (w *WSAuthClaimsAdapter) IsAtLeast(minRole string) bool {
	mine := rolePriorityIndex(w.priority, w.claims.TopRole(w.priority))
	min := rolePriorityIndex(w.priority, minRole)
	if mine < 0 || min < 0 {
		return false
	}
	return mine <= min
}

func rolePriorityIndex(priority []string, role string) int {
	for i, r := range priority {
		if r == role {
			return i
		}
	}
	return -1
}

// NewWSAuthMiddleware creates a fully configured WebSocket authentication middleware
// backed by the authenticator's token service and gate.
func (a *Auther) NewWSAuthMiddleware(gate *AccessGate, config ...router.WSAuthConfig) router.WebSocketMiddleware {
	validator := NewWSTokenValidator(a.tokenService, gate, a.rolePriority)

	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	cfg.TokenValidator = validator

	return router.NewWSAuth(cfg)
}

// WSAuthClaimsFromContext is a convenience function to retrieve auth claims from WebSocket context.
// It returns the underlying AuthClaims for access to the full claim surface.
func WSAuthClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	wsAuthClaims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}

	if adapter, ok := wsAuthClaims.(*WSAuthClaimsAdapter); ok {
		return adapter.claims, true
	}

	return nil, false
}
