package rbac_test

import (
	"context"
	"testing"

	rbac "github.com/goliatone/go-rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	alice := createActiveUser(t, repos, "alice@example.com", "Sup3rSecret!")
	createActiveUser(t, repos, "bob@example.com", "Sup3rSecret!")
	createUserWithStatus(t, repos, "carol@example.com", "Sup3rSecret!", rbac.UserStatusInactive)

	admins := createRole(t, repos, "admin")
	assignRole(t, repos, admins.ID, alice.ID)

	t.Run("defaults", func(t *testing.T) {
		res, err := rbac.ListUsers(ctx, db, rbac.ListParams{})
		require.NoError(t, err)
		assert.Len(t, res.Data, 3)
		assert.Equal(t, 3, res.Meta.FilteredRows)
		assert.Equal(t, 3, res.Meta.TotalRows)
	})

	t.Run("status filter", func(t *testing.T) {
		res, err := rbac.ListUsers(ctx, db, rbac.ListParams{
			Filters: []rbac.Filter{{Field: "status", Op: rbac.OpEq, Value: rbac.UserStatusInactive}},
		})
		require.NoError(t, err)
		require.Len(t, res.Data, 1)
		assert.Equal(t, "carol@example.com", res.Data[0].Email)
		assert.Equal(t, 1, res.Meta.FilteredRows)
		assert.Equal(t, 3, res.Meta.TotalRows)
	})

	t.Run("search", func(t *testing.T) {
		res, err := rbac.ListUsers(ctx, db, rbac.ListParams{Search: "ALICE"})
		require.NoError(t, err)
		require.Len(t, res.Data, 1)
		assert.Equal(t, "alice@example.com", res.Data[0].Email)
	})

	t.Run("order and pagination", func(t *testing.T) {
		res, err := rbac.ListUsers(ctx, db, rbac.ListParams{
			Order: []string{"email"},
			Limit: 2,
		})
		require.NoError(t, err)
		require.Len(t, res.Data, 2)
		assert.Equal(t, "alice@example.com", res.Data[0].Email)
		assert.Equal(t, "bob@example.com", res.Data[1].Email)

		res, err = rbac.ListUsers(ctx, db, rbac.ListParams{
			Order:  []string{"email"},
			Limit:  2,
			Offset: 2,
		})
		require.NoError(t, err)
		require.Len(t, res.Data, 1)
		assert.Equal(t, "carol@example.com", res.Data[0].Email)
	})

	t.Run("roles are loaded", func(t *testing.T) {
		res, err := rbac.ListUsers(ctx, db, rbac.ListParams{
			Filters: []rbac.Filter{{Field: "email", Op: rbac.OpEq, Value: "alice@example.com"}},
		})
		require.NoError(t, err)
		require.Len(t, res.Data, 1)
		assert.Equal(t, []string{"admin"}, rbac.RoleNames(res.Data[0].Roles))
	})

	t.Run("unknown filter column is dropped", func(t *testing.T) {
		res, err := rbac.ListUsers(ctx, db, rbac.ListParams{
			Filters: []rbac.Filter{{Field: "password", Op: rbac.OpEq, Value: "x"}},
		})
		require.NoError(t, err)
		assert.Len(t, res.Data, 3)
	})
}

func TestListRoles(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	editors := createRole(t, repos, "editors")
	createRole(t, repos, "viewers")
	read := createPermission(t, repos, "read", "post")
	grantPermission(t, repos, editors.ID, read.ID, true, "")

	res, err := rbac.ListRoles(ctx, db, rbac.ListParams{Order: []string{"name"}})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "editors", res.Data[0].Name)
	assert.Equal(t, "viewers", res.Data[1].Name)
	require.Len(t, res.Data[0].Permissions, 1)
	assert.Equal(t, "read", res.Data[0].Permissions[0].Action)

	t.Run("like filter", func(t *testing.T) {
		res, err := rbac.ListRoles(ctx, db, rbac.ListParams{
			Filters: []rbac.Filter{{Field: "name", Op: rbac.OpLike, Value: "edit"}},
		})
		require.NoError(t, err)
		require.Len(t, res.Data, 1)
		assert.Equal(t, "editors", res.Data[0].Name)
	})
}

func TestListPermissions(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	createPermission(t, repos, "read", "post")
	createPermission(t, repos, "update", "post")
	createPermission(t, repos, "read", "comment")

	res, err := rbac.ListPermissions(ctx, db, rbac.ListParams{
		Filters: []rbac.Filter{{Field: "module", Op: rbac.OpEq, Value: "post"}},
		Order:   []string{"action"},
	})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "read", res.Data[0].Action)
	assert.Equal(t, "update", res.Data[1].Action)
	assert.Equal(t, 3, res.Meta.TotalRows)

	t.Run("in filter", func(t *testing.T) {
		res, err := rbac.ListPermissions(ctx, db, rbac.ListParams{
			Filters: []rbac.Filter{{Field: "action", Op: rbac.OpIn, Value: []string{"update"}}},
		})
		require.NoError(t, err)
		require.Len(t, res.Data, 1)
		assert.Equal(t, "update", res.Data[0].Action)
	})
}

func TestListRolePermissions(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	editors := createRole(t, repos, "editors")
	read := createPermission(t, repos, "read", "post")
	del := createPermission(t, repos, "delete", "post")
	grantPermission(t, repos, editors.ID, read.ID, true, "")
	grantPermission(t, repos, editors.ID, del.ID, false, "")

	res, err := rbac.ListRolePermissions(ctx, db, rbac.ListParams{
		Filters: []rbac.Filter{{Field: "can_do_the_action", Op: rbac.OpEq, Value: true}},
	})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	require.NotNil(t, res.Data[0].Role)
	require.NotNil(t, res.Data[0].Permission)
	assert.Equal(t, "editors", res.Data[0].Role.Name)
	assert.Equal(t, "read", res.Data[0].Permission.Action)
	assert.Equal(t, 2, res.Meta.TotalRows)
}

func TestListRoleUsers(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repos := rbac.NewRepositoryManager(db)

	user := createActiveUser(t, repos, "member@example.com", "Sup3rSecret!")
	other := createActiveUser(t, repos, "other@example.com", "Sup3rSecret!")
	admins := createRole(t, repos, "admin")
	assignRole(t, repos, admins.ID, user.ID)
	assignRole(t, repos, admins.ID, other.ID)

	res, err := rbac.ListRoleUsers(ctx, db, rbac.ListParams{
		Filters: []rbac.Filter{{Field: "user_id", Op: rbac.OpEq, Value: user.ID}},
	})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	require.NotNil(t, res.Data[0].Role)
	require.NotNil(t, res.Data[0].User)
	assert.Equal(t, "admin", res.Data[0].Role.Name)
	assert.Equal(t, user.ID, res.Data[0].User.ID)
	assert.Equal(t, 2, res.Meta.TotalRows)
}
