package rbac

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SeedAccessControl makes sure the role catalog, the permission matrix,
// and the admin grants exist. It is idempotent: existing rows are left
// alone, so deployments can run it on every boot.
func SeedAccessControl(ctx context.Context, repos RepositoryManager) error {
	err := repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		roleIDs := map[string]uuid.UUID{}

		for _, name := range DefaultRolePriority {
			role, err := ensureRole(ctx, tx, repos, name)
			if err != nil {
				return err
			}
			roleIDs[name] = role.ID
		}

		for _, module := range PermissionModules {
			for _, action := range PermissionActions {
				perm, err := ensurePermission(ctx, tx, repos, action, module)
				if err != nil {
					return err
				}

				if err := ensureGrant(ctx, tx, repos, roleIDs[RoleNameAdmin], perm.ID); err != nil {
					return err
				}
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "access control seeding failed")
	}

	return nil
}

// SeedAuthTemplates installs default email templates for the two token
// events. Existing rows are never overwritten, so operators can edit
// the copy in place.
func SeedAuthTemplates(ctx context.Context, repos RepositoryManager) error {
	defaults := []*AuthTemplate{
		{
			Event:   EventSendUserVerificationToken,
			Title:   "Account verification",
			Subject: "Verify your account",
			Body:    "Hello {{.username}}, your verification code is {{.token}}. Confirm at {{.url}}.",
		},
		{
			Event:   EventSendForgotPasswordToken,
			Title:   "Password reset",
			Subject: "Reset your password",
			Body:    "Hello {{.username}}, your password reset code is {{.token}}. Continue at {{.url}}.",
		},
	}

	err := repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, tpl := range defaults {
			_, err := repos.AuthTemplates().GetByEventTx(ctx, tx, tpl.Event)
			if err == nil {
				continue
			}
			if !repository.IsRecordNotFound(err) {
				return err
			}

			tpl.ID = uuid.New()
			if _, err := repos.AuthTemplates().CreateTx(ctx, tx, tpl); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "auth template seeding failed")
	}

	return nil
}

func ensureRole(ctx context.Context, tx bun.Tx, repos RepositoryManager, name string) (*Role, error) {
	role, err := repos.Roles().GetByNameTx(ctx, tx, name)
	if err == nil {
		return role, nil
	}
	if !IsTextCode(err, ErrRoleDoesNotExist.TextCode) {
		return nil, err
	}

	return repos.Roles().CreateTx(ctx, tx, &Role{
		ID:   uuid.New(),
		Name: name,
	})
}

func ensurePermission(ctx context.Context, tx bun.Tx, repos RepositoryManager, action, module string) (*Permission, error) {
	perm, err := repos.Permissions().GetByActionModuleTx(ctx, tx, action, module)
	if err == nil {
		return perm, nil
	}
	if !IsTextCode(err, ErrPermissionDoesNotExist.TextCode) {
		return nil, err
	}

	return repos.Permissions().CreateTx(ctx, tx, &Permission{
		ID:     uuid.New(),
		Action: action,
		Module: module,
	})
}

func ensureGrant(ctx context.Context, tx bun.Tx, repos RepositoryManager, roleID, permissionID uuid.UUID) (err error) {
	if roleID == uuid.Nil {
		return nil
	}

	_, err = repos.RolePermissions().GetEdgeTx(ctx, tx, roleID, permissionID)
	if err == nil {
		return nil
	}
	if !repository.IsRecordNotFound(err) {
		return err
	}

	_, err = repos.RolePermissions().GrantTx(ctx, tx, &RolePermission{
		ID:             uuid.New(),
		RoleID:         roleID,
		PermissionID:   permissionID,
		CanDoTheAction: true,
	})
	return err
}
