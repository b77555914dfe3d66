package rbac

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents structured JWT claims with role checks
type AuthClaims interface {
	Subject() string
	UserID() string
	TokenType() string
	Roles() []string
	TopRole(priority []string) string
	HasRole(role string) bool
	HasAnyRole(roles []string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string         `json:"uid,omitempty"`
	Type      string         `json:"type,omitempty"`  // access_token | refresh_token
	UserRoles []string       `json:"roles,omitempty"` // role names at mint time
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// TokenType returns which half of the pair this token is
func (c *JWTClaims) TokenType() string {
	return c.Type
}

// Roles returns the role names embedded at mint time
func (c *JWTClaims) Roles() []string {
	return c.UserRoles
}

// TopRole returns the highest-priority role the token carries
func (c *JWTClaims) TopRole(priority []string) string {
	return TopRole(priority, c.UserRoles)
}

// HasRole checks if the token carries a specific role
func (c *JWTClaims) HasRole(role string) bool {
	for _, r := range c.UserRoles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the token carries at least one of the given roles.
// An empty list is satisfied by any authenticated token.
func (c *JWTClaims) HasAnyRole(roles []string) bool {
	return HasAnyRole(c.UserRoles, roles)
}

// ClaimsMetadata exposes metadata extensions for optional context enrichment.
func (c *JWTClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
