package rbac

import (
	"context"

	"github.com/uptrace/bun"
)

// Allowed filter/order columns per table. Anything else in a request is
// silently dropped.
var (
	userListColumns = map[string]bool{
		"id": true, "email": true, "first_name": true, "last_name": true,
		"status": true, "created_at": true, "updated_at": true,
	}
	roleListColumns = map[string]bool{
		"id": true, "name": true, "created_at": true, "updated_at": true,
	}
	permissionListColumns = map[string]bool{
		"id": true, "action": true, "module": true, "created_at": true, "updated_at": true,
	}
	rolePermissionListColumns = map[string]bool{
		"id": true, "role_id": true, "permission_id": true, "can_do_the_action": true,
		"scope": true, "created_at": true, "updated_at": true,
	}
	roleUserListColumns = map[string]bool{
		"id": true, "role_id": true, "user_id": true, "created_at": true, "updated_at": true,
	}
)

// ListUsers returns a filtered page of users with their roles loaded.
func ListUsers(ctx context.Context, db bun.IDB, params ListParams) (*ListResult[*User], error) {
	params.Normalize()

	var records []*User
	q := db.NewSelect().Model(&records).Relation("Roles")
	q = ApplyFilters(q, params.Filters, userListColumns)
	q = ApplySearch(q, params.Search, "email", "first_name", "last_name")
	q = ApplyOrder(q, params.Order, userListColumns)

	filtered, err := q.Limit(params.Limit).Offset(params.Offset).ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}

	total, err := db.NewSelect().Model((*User)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}

	return &ListResult[*User]{
		Data: records,
		Meta: ListMeta{FilteredRows: filtered, TotalRows: total},
	}, nil
}

// ListRoles returns a filtered page of roles with their permissions.
func ListRoles(ctx context.Context, db bun.IDB, params ListParams) (*ListResult[*Role], error) {
	params.Normalize()

	var records []*Role
	q := db.NewSelect().Model(&records).Relation("Permissions")
	q = ApplyFilters(q, params.Filters, roleListColumns)
	q = ApplySearch(q, params.Search, "name")
	q = ApplyOrder(q, params.Order, roleListColumns)

	filtered, err := q.Limit(params.Limit).Offset(params.Offset).ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}

	total, err := db.NewSelect().Model((*Role)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}

	return &ListResult[*Role]{
		Data: records,
		Meta: ListMeta{FilteredRows: filtered, TotalRows: total},
	}, nil
}

// ListPermissions returns a filtered page of permissions.
func ListPermissions(ctx context.Context, db bun.IDB, params ListParams) (*ListResult[*Permission], error) {
	params.Normalize()

	var records []*Permission
	q := db.NewSelect().Model(&records)
	q = ApplyFilters(q, params.Filters, permissionListColumns)
	q = ApplySearch(q, params.Search, "action", "module")
	q = ApplyOrder(q, params.Order, permissionListColumns)

	filtered, err := q.Limit(params.Limit).Offset(params.Offset).ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}

	total, err := db.NewSelect().Model((*Permission)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}

	return &ListResult[*Permission]{
		Data: records,
		Meta: ListMeta{FilteredRows: filtered, TotalRows: total},
	}, nil
}

// ListRolePermissions returns a filtered page of grant edges with both
// ends of the edge loaded.
func ListRolePermissions(ctx context.Context, db bun.IDB, params ListParams) (*ListResult[*RolePermission], error) {
	params.Normalize()

	var records []*RolePermission
	q := db.NewSelect().Model(&records).Relation("Role").Relation("Permission")
	q = ApplyFilters(q, params.Filters, rolePermissionListColumns)
	q = ApplyOrder(q, params.Order, rolePermissionListColumns)

	filtered, err := q.Limit(params.Limit).Offset(params.Offset).ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}

	total, err := db.NewSelect().Model((*RolePermission)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}

	return &ListResult[*RolePermission]{
		Data: records,
		Meta: ListMeta{FilteredRows: filtered, TotalRows: total},
	}, nil
}

// ListRoleUsers returns a filtered page of assignment edges.
func ListRoleUsers(ctx context.Context, db bun.IDB, params ListParams) (*ListResult[*RoleUser], error) {
	params.Normalize()

	var records []*RoleUser
	q := db.NewSelect().Model(&records).Relation("Role").Relation("User")
	q = ApplyFilters(q, params.Filters, roleUserListColumns)
	q = ApplyOrder(q, params.Order, roleUserListColumns)

	filtered, err := q.Limit(params.Limit).Offset(params.Offset).ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}

	total, err := db.NewSelect().Model((*RoleUser)(nil)).Count(ctx)
	if err != nil {
		return nil, err
	}

	return &ListResult[*RoleUser]{
		Data: records,
		Meta: ListMeta{FilteredRows: filtered, TotalRows: total},
	}, nil
}
