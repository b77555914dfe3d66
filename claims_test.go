package rbac_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	rbac "github.com/goliatone/go-rbac"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func buildClaims(uid string, roles ...string) *rbac.JWTClaims {
	now := time.Now()
	return &rbac.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "rbac-test",
			Subject:   uid,
			Audience:  jwt.ClaimStrings{"rbac-test"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UID:       uid,
		Type:      rbac.TokenTypeAccess,
		UserRoles: roles,
	}
}

func TestJWTClaimsIdentity(t *testing.T) {
	uid := uuid.NewString()
	claims := buildClaims(uid, "user")

	assert.Equal(t, uid, claims.Subject())
	assert.Equal(t, uid, claims.UserID())
	assert.Equal(t, rbac.TokenTypeAccess, claims.TokenType())

	t.Run("UID takes precedence over subject", func(t *testing.T) {
		other := buildClaims(uid)
		other.RegisteredClaims.Subject = "sub-value"
		other.UID = "uid-value"
		assert.Equal(t, "uid-value", other.UserID())
	})

	t.Run("falls back to subject without UID", func(t *testing.T) {
		other := buildClaims(uid)
		other.UID = ""
		assert.Equal(t, uid, other.UserID())
	})
}

func TestJWTClaimsRoles(t *testing.T) {
	claims := buildClaims(uuid.NewString(), "user", "moderator")

	assert.Equal(t, []string{"user", "moderator"}, claims.Roles())
	assert.True(t, claims.HasRole("moderator"))
	assert.False(t, claims.HasRole("admin"))

	assert.True(t, claims.HasAnyRole([]string{"admin", "user"}))
	assert.False(t, claims.HasAnyRole([]string{"admin"}))
	assert.True(t, claims.HasAnyRole(nil), "empty requirement means any authenticated token")

	assert.Equal(t, "moderator", claims.TopRole(rbac.DefaultRolePriority))
	assert.Equal(t, "", buildClaims(uuid.NewString()).TopRole(rbac.DefaultRolePriority))
}

func TestJWTClaimsTimes(t *testing.T) {
	claims := buildClaims(uuid.NewString(), "user")

	assert.WithinDuration(t, time.Now(), claims.IssuedAt(), 2*time.Second)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.Expires(), 2*time.Second)

	t.Run("zero values when unset", func(t *testing.T) {
		empty := &rbac.JWTClaims{}
		assert.True(t, empty.Expires().IsZero())
		assert.True(t, empty.IssuedAt().IsZero())
	})
}

func TestJWTClaimsMetadata(t *testing.T) {
	claims := buildClaims(uuid.NewString())
	assert.Nil(t, claims.ClaimsMetadata())

	claims.Metadata = map[string]any{"tenant": "acme"}
	assert.Equal(t, "acme", claims.ClaimsMetadata()["tenant"])
}
