package rbac

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	UserID      uuid.UUID `json:"user_id"`
	OldPassword string    `json:"old_password"`
	NewPassword string    `json:"new_password"`
	// KeepSession leaves the caller's other sessions alive. The default
	// revokes every session so stolen tokens die with the old password.
	KeepSessions bool `json:"keep_sessions"`
}

func (e ChangePasswordMessage) Type() string { return "user.password.change" }

type ChangePasswordHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewChangePasswordHandler(repo RepositoryManager) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserDoesNotExist
			}
			return err
		}

		if err := ComparePasswordAndHash(event.OldPassword, user.PasswordHash); err != nil {
			return ErrOldPasswordIncorrect
		}

		return changePassword(ctx, tx, h.repo, user, event.NewPassword, !event.KeepSessions)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password change transaction failed")
	}

	return nil
}

// AdminChangePasswordMessage sets a user's password without the old one.
// The actor must already have been authorized for update:user.
type AdminChangePasswordMessage struct {
	UserID      uuid.UUID `json:"user_id"`
	NewPassword string    `json:"new_password"`
	Actor       ActorRef  `json:"-"`
}

func (e AdminChangePasswordMessage) Type() string { return "user.password.admin_change" }

type AdminChangePasswordHandler struct {
	repo     RepositoryManager
	activity ActivitySink
}

func NewAdminChangePasswordHandler(repo RepositoryManager) *AdminChangePasswordHandler {
	return &AdminChangePasswordHandler{
		repo:     repo,
		activity: noopActivitySink{},
	}
}

func (h *AdminChangePasswordHandler) WithActivitySink(sink ActivitySink) *AdminChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *AdminChangePasswordHandler) Execute(ctx context.Context, event AdminChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AdminChangePasswordHandler) execute(ctx context.Context, event AdminChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserDoesNotExist
			}
			return err
		}

		return changePassword(ctx, tx, h.repo, user, event.NewPassword, true)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "admin password change transaction failed")
	}

	h.recordActivity(ctx, event)

	return nil
}

func (h *AdminChangePasswordHandler) recordActivity(ctx context.Context, event AdminChangePasswordMessage) {
	actor := event.Actor
	if actor == (ActorRef{}) {
		actor = ActorRef{Type: "admin"}
	}

	record := ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
		Actor:      actor,
		UserID:     event.UserID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, record); err != nil {
		defLogger{}.Error("activity sink error during admin password change: %v", err)
	}
}

// changePassword runs the shared tail of every password mutation: policy
// and history checks, hash, persist with the rolled history, and session
// revocation.
func changePassword(ctx context.Context, tx bun.IDB, repo RepositoryManager, user *User, password string, revokeSessions bool) error {
	if err := ValidateNewPassword(password, user.PasswordHash, user.OldPasswords); err != nil {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	user.PushOldPassword(hash)
	if err := repo.Users().ResetPasswordTx(ctx, tx, user.ID, hash, user.OldPasswords); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
	}

	if revokeSessions {
		if _, err := repo.AuthTokens().DeleteAllForUserTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke user sessions")
		}
	}

	return nil
}
