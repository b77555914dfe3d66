package rbac_test

import (
	"context"
	"testing"

	rbac "github.com/goliatone/go-rbac"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func edge(action, module string, allowed bool, scope string) *rbac.RolePermission {
	return &rbac.RolePermission{
		CanDoTheAction: allowed,
		Scope:          scope,
		Permission:     &rbac.Permission{Action: action, Module: module},
	}
}

func TestPermissionSetCan(t *testing.T) {
	set := rbac.NewPermissionSet([]*rbac.RolePermission{
		edge("read", "user", true, ""),
		edge("update", "user", false, ""),
	})

	assert.True(t, set.Can("read", "user"))
	assert.False(t, set.Can("update", "user"), "edge existing does not imply the grant")
	assert.False(t, set.Can("delete", "user"))
	assert.False(t, set.Can("read", "role"))
}

func TestPermissionSetAllowsScoped(t *testing.T) {
	set := rbac.NewPermissionSet([]*rbac.RolePermission{
		edge("update", "post", true, rbac.GrantScopeAssociated),
	})

	// a scoped grant only satisfies requests that state ownership
	assert.True(t, set.Allows(rbac.AccessRequest{Action: "update", Module: "post", Associated: boolPtr(true)}))
	assert.False(t, set.Allows(rbac.AccessRequest{Action: "update", Module: "post", Associated: boolPtr(false)}))
	assert.False(t, set.Allows(rbac.AccessRequest{Action: "update", Module: "post"}))
}

func TestPermissionSetAssociatedFalseAlwaysDenies(t *testing.T) {
	set := rbac.NewPermissionSet([]*rbac.RolePermission{
		edge("update", "post", true, ""),
	})

	// an unscoped grant covers bare and affirmed requests
	assert.True(t, set.Allows(rbac.AccessRequest{Action: "update", Module: "post"}))
	assert.True(t, set.Allows(rbac.AccessRequest{Action: "update", Module: "post", Associated: boolPtr(true)}))

	// stating the target is someone else's denies even an unscoped grant
	assert.False(t, set.Allows(rbac.AccessRequest{Action: "update", Module: "post", Associated: boolPtr(false)}))
}

func TestPermissionSetPermissiveUnion(t *testing.T) {
	// one role denies, another allows: the union is permissive
	set := rbac.NewPermissionSet([]*rbac.RolePermission{
		edge("delete", "post", false, ""),
		edge("delete", "post", true, ""),
	})
	assert.True(t, set.Can("delete", "post"))

	// a scoped grant plus an unscoped one: unscoped wins for bare requests
	set = rbac.NewPermissionSet([]*rbac.RolePermission{
		edge("update", "post", true, rbac.GrantScopeAssociated),
		edge("update", "post", true, ""),
	})
	assert.True(t, set.Allows(rbac.AccessRequest{Action: "update", Module: "post"}))
}

func TestPermissionSetSkipsDanglingEdges(t *testing.T) {
	set := rbac.NewPermissionSet([]*rbac.RolePermission{
		nil,
		{CanDoTheAction: true},
		edge("read", "user", true, ""),
	})

	assert.True(t, set.Can("read", "user"))
	assert.Len(t, set.Grants(), 1)
}

func TestPermissionSetCheck(t *testing.T) {
	set := rbac.NewPermissionSet([]*rbac.RolePermission{
		edge("read", "user", true, ""),
	})

	assert.NoError(t, set.Check(rbac.AccessRequest{Action: "read", Module: "user"}))

	err := set.Check(rbac.AccessRequest{Action: "delete", Module: "user"})
	require.Error(t, err)
	assert.True(t, rbac.IsTextCode(err, rbac.TextCodePermissionDenied))
}

func TestAccessGate(t *testing.T) {
	ctx := context.Background()
	repos := setupRepos(t)
	gate := rbac.NewAccessGate(repos, nil)

	user := createActiveUser(t, repos, "gate@example.com", "Sup3rSecret!")

	editors := createRole(t, repos, "editors")
	viewers := createRole(t, repos, "viewers")

	readPost := createPermission(t, repos, "read", "post")
	updatePost := createPermission(t, repos, "update", "post")
	deletePost := createPermission(t, repos, "delete", "post")

	grantPermission(t, repos, viewers.ID, readPost.ID, true, "")
	grantPermission(t, repos, editors.ID, updatePost.ID, true, rbac.GrantScopeAssociated)
	grantPermission(t, repos, editors.ID, deletePost.ID, false, "")

	assignRole(t, repos, editors.ID, user.ID)
	assignRole(t, repos, viewers.ID, user.ID)

	t.Run("RolesOf", func(t *testing.T) {
		names, err := gate.RolesOf(ctx, user.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"editors", "viewers"}, names)
	})

	t.Run("PermissionsOf flattens role grants", func(t *testing.T) {
		set, err := gate.PermissionsOf(ctx, user.ID)
		require.NoError(t, err)

		assert.True(t, set.Can("read", "post"))
		assert.False(t, set.Can("delete", "post"))
		assert.True(t, set.Allows(rbac.AccessRequest{Action: "update", Module: "post", Associated: boolPtr(true)}))
		assert.False(t, set.Allows(rbac.AccessRequest{Action: "update", Module: "post"}))
	})

	t.Run("Authorize", func(t *testing.T) {
		assert.NoError(t, gate.Authorize(ctx, user.ID, rbac.AccessRequest{Action: "read", Module: "post"}))

		err := gate.Authorize(ctx, user.ID, rbac.AccessRequest{Action: "delete", Module: "post"})
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodePermissionDenied))
	})

	t.Run("TopRoleOf", func(t *testing.T) {
		top, err := gate.TopRoleOf(ctx, user.ID, []string{"editors", "viewers"})
		require.NoError(t, err)
		assert.Equal(t, "editors", top)
	})

	t.Run("user without roles has no grants", func(t *testing.T) {
		stranger := createActiveUser(t, repos, "stranger@example.com", "Sup3rSecret!")

		set, err := gate.PermissionsOf(ctx, stranger.ID)
		require.NoError(t, err)
		assert.False(t, set.Can("read", "post"))

		err = gate.Authorize(ctx, stranger.ID, rbac.AccessRequest{Action: "read", Module: "post"})
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodePermissionDenied))
	})

	t.Run("unknown user id", func(t *testing.T) {
		err := gate.Authorize(ctx, uuid.New(), rbac.AccessRequest{Action: "read", Module: "post"})
		assert.True(t, rbac.IsTextCode(err, rbac.TextCodePermissionDenied))
	})
}
