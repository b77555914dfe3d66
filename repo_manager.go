package rbac

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Roles() Roles
	Permissions() Permissions
	RolePermissions() RolePermissions
	RoleUsers() RoleUsers
	AuthTokens() AuthTokens
	VerificationTokens() VerificationTokens
	AuthTemplates() AuthTemplates
}

type mngr struct {
	db                 *bun.DB
	users              Users
	roles              Roles
	permissions        Permissions
	rolePermissions    RolePermissions
	roleUsers          RoleUsers
	authTokens         AuthTokens
	verificationTokens VerificationTokens
	authTemplates      AuthTemplates
}

func NewRepositoryManager(db *bun.DB, opts ...UsersOption) RepositoryManager {
	return &mngr{
		db:                 db,
		users:              NewUsersRepository(db, opts...),
		roles:              NewRolesRepository(db),
		permissions:        NewPermissionsRepository(db),
		rolePermissions:    NewRolePermissionsRepository(db),
		roleUsers:          NewRoleUsersRepository(db),
		authTokens:         NewAuthTokensRepository(db),
		verificationTokens: NewVerificationTokensRepository(db),
		authTemplates:      NewAuthTemplatesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.permissions == nil {
		return errors.New("repository permissions should be initialized")
	}

	if m.rolePermissions == nil {
		return errors.New("repository rolePermissions should be initialized")
	}

	if m.roleUsers == nil {
		return errors.New("repository roleUsers should be initialized")
	}

	if m.authTokens == nil {
		return errors.New("repository authTokens should be initialized")
	}

	if m.verificationTokens == nil {
		return errors.New("repository verificationTokens should be initialized")
	}

	if m.authTemplates == nil {
		return errors.New("repository authTemplates should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) Permissions() Permissions {
	return m.permissions
}

func (m mngr) RolePermissions() RolePermissions {
	return m.rolePermissions
}

func (m mngr) RoleUsers() RoleUsers {
	return m.roleUsers
}

func (m mngr) AuthTokens() AuthTokens {
	return m.authTokens
}

func (m mngr) VerificationTokens() VerificationTokens {
	return m.verificationTokens
}

func (m mngr) AuthTemplates() AuthTemplates {
	return m.authTemplates
}
