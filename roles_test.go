package rbac_test

import (
	"testing"

	rbac "github.com/goliatone/go-rbac"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTopRole(t *testing.T) {
	priority := rbac.DefaultRolePriority

	tests := []struct {
		name     string
		roles    []string
		expected string
	}{
		{name: "single role", roles: []string{"user"}, expected: "user"},
		{name: "picks highest priority", roles: []string{"user", "admin"}, expected: "admin"},
		{name: "order in priority wins", roles: []string{"moderator", "developer"}, expected: "developer"},
		{name: "unknown roles fall through", roles: []string{"auditor"}, expected: ""},
		{name: "no roles", roles: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rbac.TopRole(priority, tt.roles))
		})
	}
}

func TestHasAnyRole(t *testing.T) {
	roles := []string{"user", "moderator"}

	assert.True(t, rbac.HasAnyRole(roles, []string{"moderator"}))
	assert.True(t, rbac.HasAnyRole(roles, []string{"admin", "user"}))
	assert.False(t, rbac.HasAnyRole(roles, []string{"admin"}))

	// empty requirement is satisfied by any caller
	assert.True(t, rbac.HasAnyRole(roles, nil))
	assert.True(t, rbac.HasAnyRole(nil, nil))
	assert.False(t, rbac.HasAnyRole(nil, []string{"admin"}))
}

func TestRoleNames(t *testing.T) {
	records := []*rbac.Role{
		{ID: uuid.New(), Name: "admin"},
		nil,
		{ID: uuid.New(), Name: "user"},
	}

	assert.Equal(t, []string{"admin", "user"}, rbac.RoleNames(records))
	assert.Empty(t, rbac.RoleNames(nil))
}

func TestDefaultRoleNames(t *testing.T) {
	names := rbac.DefaultRoleNames()
	assert.Equal(t, rbac.DefaultRolePriority, names)

	// mutation of the copy must not leak into the package catalog
	names[0] = "changed"
	assert.Equal(t, rbac.RoleNameAdmin, rbac.DefaultRolePriority[0])
}
