package rbac

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RolesOfUserSQL fetches the role names a user holds, used by the hot
// authorization path.
var RolesOfUserSQL = `SELECT "rol"."id", "rol"."name"
FROM "roles" AS "rol"
INNER JOIN "role_users" AS "rusr" ON "rusr"."role_id" = "rol"."id"
WHERE "rusr"."user_id" = ?;`

type Roles interface {
	repository.Repository[*Role]

	GetByName(ctx context.Context, name string) (*Role, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	OfUser(ctx context.Context, userID uuid.UUID) ([]*Role, error)
	OfUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*Role, error)
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &roles{Repository: repo, db: db}
}

func (r *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.GetByNameTx(ctx, r.db, name)
}

func (r *roles) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", strings.TrimSpace(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRoleDoesNotExist.Clone().WithMetadata(map[string]any{
				"name": name,
			})
		}
		return nil, err
	}
	return record, nil
}

func (r *roles) OfUser(ctx context.Context, userID uuid.UUID) ([]*Role, error) {
	return r.OfUserTx(ctx, r.db, userID)
}

func (r *roles) OfUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*Role, error) {
	var records []*Role
	err := tx.NewRaw(RolesOfUserSQL, userID).Scan(ctx, &records)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

type Permissions interface {
	repository.Repository[*Permission]

	GetByActionModule(ctx context.Context, action, module string) (*Permission, error)
	GetByActionModuleTx(ctx context.Context, tx bun.IDB, action, module string) (*Permission, error)
}

type permissions struct {
	repository.Repository[*Permission]
	db *bun.DB
}

var _ Permissions = (*permissions)(nil)

func NewPermissionsRepository(db *bun.DB) Permissions {
	repo := repository.NewRepository[*Permission](db, repository.ModelHandlers[*Permission]{
		NewRecord: func() *Permission { return &Permission{} },
		GetID: func(p *Permission) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Permission, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &permissions{Repository: repo, db: db}
}

func (p *permissions) GetByActionModule(ctx context.Context, action, module string) (*Permission, error) {
	return p.GetByActionModuleTx(ctx, p.db, action, module)
}

func (p *permissions) GetByActionModuleTx(ctx context.Context, tx bun.IDB, action, module string) (*Permission, error) {
	record := &Permission{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.action = ?", action).
		Where("?TableAlias.module = ?", module).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrPermissionDoesNotExist.Clone().WithMetadata(map[string]any{
				"action": action,
				"module": module,
			})
		}
		return nil, err
	}
	return record, nil
}

// RolePermissions manages the grant edges
type RolePermissions interface {
	repository.Repository[*RolePermission]

	Grant(ctx context.Context, edge *RolePermission) (*RolePermission, error)
	GrantTx(ctx context.Context, tx bun.IDB, edge *RolePermission) (*RolePermission, error)
	UpdateGrant(ctx context.Context, roleID, permissionID uuid.UUID, allowed bool, updatedBy *uuid.UUID) (*RolePermission, error)
	UpdateGrantTx(ctx context.Context, tx bun.IDB, roleID, permissionID uuid.UUID, allowed bool, updatedBy *uuid.UUID) (*RolePermission, error)
	GetEdge(ctx context.Context, roleID, permissionID uuid.UUID) (*RolePermission, error)
	GetEdgeTx(ctx context.Context, tx bun.IDB, roleID, permissionID uuid.UUID) (*RolePermission, error)
	OfRoles(ctx context.Context, roleIDs []uuid.UUID) ([]*RolePermission, error)
	OfRolesTx(ctx context.Context, tx bun.IDB, roleIDs []uuid.UUID) ([]*RolePermission, error)
}

type rolePermissions struct {
	repository.Repository[*RolePermission]
	db *bun.DB
}

var _ RolePermissions = (*rolePermissions)(nil)

func NewRolePermissionsRepository(db *bun.DB) RolePermissions {
	repo := repository.NewRepository[*RolePermission](db, repository.ModelHandlers[*RolePermission]{
		NewRecord: func() *RolePermission { return &RolePermission{} },
		GetID: func(rp *RolePermission) uuid.UUID {
			if rp == nil {
				return uuid.Nil
			}
			return rp.ID
		},
		SetID: func(rp *RolePermission, id uuid.UUID) {
			if rp != nil {
				rp.ID = id
			}
		},
	})

	return &rolePermissions{Repository: repo, db: db}
}

func (rp *rolePermissions) Grant(ctx context.Context, edge *RolePermission) (*RolePermission, error) {
	return rp.GrantTx(ctx, rp.db, edge)
}

// GrantTx creates the edge; a duplicate (role, permission) pair is a
// conflict, the schema's unique index arbitrating concurrent creates.
// Both endpoints are checked first so a dangling id surfaces as a
// catalog error rather than a driver foreign key violation.
func (rp *rolePermissions) GrantTx(ctx context.Context, tx bun.IDB, edge *RolePermission) (*RolePermission, error) {
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}

	ok, err := tx.NewSelect().
		Model((*Role)(nil)).
		Where("?TableAlias.id = ?", edge.RoleID).
		Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoleDoesNotExist.Clone().WithMetadata(map[string]any{
			"role_id": edge.RoleID.String(),
		})
	}

	ok, err = tx.NewSelect().
		Model((*Permission)(nil)).
		Where("?TableAlias.id = ?", edge.PermissionID).
		Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDoesNotExist.Clone().WithMetadata(map[string]any{
			"permission_id": edge.PermissionID.String(),
		})
	}

	out, err := rp.Repository.CreateTx(ctx, tx, edge)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRolePermissionExists.Clone().WithMetadata(map[string]any{
				"role_id":       edge.RoleID.String(),
				"permission_id": edge.PermissionID.String(),
			})
		}
		return nil, err
	}
	return out, nil
}

func (rp *rolePermissions) UpdateGrant(ctx context.Context, roleID, permissionID uuid.UUID, allowed bool, updatedBy *uuid.UUID) (*RolePermission, error) {
	return rp.UpdateGrantTx(ctx, rp.db, roleID, permissionID, allowed, updatedBy)
}

// UpdateGrantTx flips the allow flag on an existing edge and records
// who changed it.
func (rp *rolePermissions) UpdateGrantTx(ctx context.Context, tx bun.IDB, roleID, permissionID uuid.UUID, allowed bool, updatedBy *uuid.UUID) (*RolePermission, error) {
	edge, err := rp.GetEdgeTx(ctx, tx, roleID, permissionID)
	if err != nil {
		return nil, err
	}

	edge.CanDoTheAction = allowed
	if updatedBy != nil {
		edge.UpdatedBy = updatedBy
	}

	return rp.Repository.UpdateTx(ctx, tx, edge, repository.UpdateByID(edge.ID.String()))
}

func (rp *rolePermissions) GetEdge(ctx context.Context, roleID, permissionID uuid.UUID) (*RolePermission, error) {
	return rp.GetEdgeTx(ctx, rp.db, roleID, permissionID)
}

func (rp *rolePermissions) GetEdgeTx(ctx context.Context, tx bun.IDB, roleID, permissionID uuid.UUID) (*RolePermission, error) {
	record := &RolePermission{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.role_id = ?", roleID).
		Where("?TableAlias.permission_id = ?", permissionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"role_id":       roleID.String(),
				"permission_id": permissionID.String(),
			})
		}
		return nil, err
	}
	return record, nil
}

func (rp *rolePermissions) OfRoles(ctx context.Context, roleIDs []uuid.UUID) ([]*RolePermission, error) {
	return rp.OfRolesTx(ctx, rp.db, roleIDs)
}

// OfRolesTx loads the grant edges with permissions, which the gate
// flattens into the effective permission set.
func (rp *rolePermissions) OfRolesTx(ctx context.Context, tx bun.IDB, roleIDs []uuid.UUID) ([]*RolePermission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	var records []*RolePermission
	err := tx.NewSelect().
		Model(&records).
		Relation("Permission").
		Where("?TableAlias.role_id IN (?)", bun.In(roleIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// RoleUsers manages the assignment edges
type RoleUsers interface {
	repository.Repository[*RoleUser]

	Assign(ctx context.Context, roleID, userID uuid.UUID) (*RoleUser, error)
	AssignTx(ctx context.Context, tx bun.IDB, roleID, userID uuid.UUID) (*RoleUser, error)
	Unassign(ctx context.Context, roleID, userID uuid.UUID) error
	UnassignTx(ctx context.Context, tx bun.IDB, roleID, userID uuid.UUID) error
	Exists(ctx context.Context, roleID, userID uuid.UUID) (bool, error)
	ExistsTx(ctx context.Context, tx bun.IDB, roleID, userID uuid.UUID) (bool, error)
}

type roleUsers struct {
	repository.Repository[*RoleUser]
	db *bun.DB
}

var _ RoleUsers = (*roleUsers)(nil)

func NewRoleUsersRepository(db *bun.DB) RoleUsers {
	repo := repository.NewRepository[*RoleUser](db, repository.ModelHandlers[*RoleUser]{
		NewRecord: func() *RoleUser { return &RoleUser{} },
		GetID: func(ru *RoleUser) uuid.UUID {
			if ru == nil {
				return uuid.Nil
			}
			return ru.ID
		},
		SetID: func(ru *RoleUser, id uuid.UUID) {
			if ru != nil {
				ru.ID = id
			}
		},
	})

	return &roleUsers{Repository: repo, db: db}
}

func (ru *roleUsers) Assign(ctx context.Context, roleID, userID uuid.UUID) (*RoleUser, error) {
	return ru.AssignTx(ctx, ru.db, roleID, userID)
}

func (ru *roleUsers) AssignTx(ctx context.Context, tx bun.IDB, roleID, userID uuid.UUID) (*RoleUser, error) {
	edge := &RoleUser{
		ID:     uuid.New(),
		RoleID: roleID,
		UserID: userID,
	}
	out, err := ru.Repository.CreateTx(ctx, tx, edge)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRoleUserExists.Clone().WithMetadata(map[string]any{
				"role_id": roleID.String(),
				"user_id": userID.String(),
			})
		}
		return nil, err
	}
	return out, nil
}

func (ru *roleUsers) Unassign(ctx context.Context, roleID, userID uuid.UUID) error {
	return ru.UnassignTx(ctx, ru.db, roleID, userID)
}

func (ru *roleUsers) UnassignTx(ctx context.Context, tx bun.IDB, roleID, userID uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*RoleUser)(nil)).
		Where("?TableAlias.role_id = ?", roleID).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCouldNotRemoveRoleUser.Clone().WithMetadata(map[string]any{
			"role_id": roleID.String(),
			"user_id": userID.String(),
		})
	}
	return nil
}

func (ru *roleUsers) Exists(ctx context.Context, roleID, userID uuid.UUID) (bool, error) {
	return ru.ExistsTx(ctx, ru.db, roleID, userID)
}

func (ru *roleUsers) ExistsTx(ctx context.Context, tx bun.IDB, roleID, userID uuid.UUID) (bool, error) {
	return tx.NewSelect().
		Model((*RoleUser)(nil)).
		Where("?TableAlias.role_id = ?", roleID).
		Where("?TableAlias.user_id = ?", userID).
		Exists(ctx)
}
