package rbac

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RequestEmailChangeMessage struct {
	UserID   uuid.UUID `json:"user_id"`
	NewEmail string    `json:"new_email"`
	Password string    `json:"password"`
}

func (e RequestEmailChangeMessage) Type() string { return "user.email.change_request" }

// RequestEmailChangeHandler stages a new address on the account and
// sends a verification code to it. The address only becomes the login
// identity once the code comes back.
type RequestEmailChangeHandler struct {
	repo         RepositoryManager
	verification *VerificationService
}

func NewRequestEmailChangeHandler(repo RepositoryManager, vs *VerificationService) *RequestEmailChangeHandler {
	return &RequestEmailChangeHandler{repo: repo, verification: vs}
}

func (h *RequestEmailChangeHandler) Execute(ctx context.Context, event RequestEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email change request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestEmailChangeHandler) execute(ctx context.Context, event RequestEmailChangeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := ValidateEmail(event.NewEmail); err != nil {
		return err
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserDoesNotExist
			}
			return err
		}

		if err := ComparePasswordAndHash(event.Password, user.PasswordHash); err != nil {
			return ErrPasswordIncorrect
		}

		taken, err := h.repo.Users().EmailExistsTx(ctx, tx, event.NewEmail)
		if err != nil {
			return err
		}
		if taken {
			return ErrNewEmailTaken
		}

		user.NewEmail = event.NewEmail
		if _, err := h.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return err
		}

		// The code goes to the address being claimed, proving the caller
		// controls it.
		staged := *user
		staged.Email = event.NewEmail
		if _, err := h.verification.Issue(ctx, tx, &staged, VerificationTypeUser); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email change request transaction failed")
	}

	return nil
}

type FinalizeEmailChangeMessage struct {
	UserID     uuid.UUID `json:"user_id"`
	Token      string    `json:"token"`
	OnResponse func(u *User)
}

func (e FinalizeEmailChangeMessage) Type() string { return "user.email.change_finalize" }

type FinalizeEmailChangeHandler struct {
	repo         RepositoryManager
	verification *VerificationService
}

func NewFinalizeEmailChangeHandler(repo RepositoryManager, vs *VerificationService) *FinalizeEmailChangeHandler {
	return &FinalizeEmailChangeHandler{repo: repo, verification: vs}
}

func (h *FinalizeEmailChangeHandler) Execute(ctx context.Context, event FinalizeEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email change finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizeEmailChangeHandler) execute(ctx context.Context, event FinalizeEmailChangeMessage) error {
	var user *User

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserDoesNotExist
			}
			return err
		}

		if user.NewEmail == "" {
			return ErrNoChangeEmailRequest
		}

		if _, err := h.verification.Validate(ctx, tx, user.NewEmail, event.Token, VerificationTypeUser); err != nil {
			return err
		}

		// Re-check the claim: another account may have registered the
		// address while the code was in flight.
		taken, err := h.repo.Users().EmailExistsTx(ctx, tx, user.NewEmail)
		if err != nil {
			return err
		}
		if taken {
			return ErrNewEmailTaken
		}

		user.Email = user.NewEmail
		user.NewEmail = ""
		if _, err := h.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			if isUniqueViolation(err) {
				return ErrNewEmailTaken
			}
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email change finalization transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

type CancelEmailChangeMessage struct {
	Email string `json:"email"`
}

func (e CancelEmailChangeMessage) Type() string { return "user.email.change_cancel" }

// CancelEmailChangeHandler abandons a pending email change: the staged
// address is cleared and any codes sent to it stop working.
type CancelEmailChangeHandler struct {
	repo RepositoryManager
}

func NewCancelEmailChangeHandler(repo RepositoryManager) *CancelEmailChangeHandler {
	return &CancelEmailChangeHandler{repo: repo}
}

func (h *CancelEmailChangeHandler) Execute(ctx context.Context, event CancelEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email change cancellation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CancelEmailChangeHandler) execute(ctx context.Context, event CancelEmailChangeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserDoesNotExist
			}
			return err
		}

		if user.NewEmail == "" {
			return ErrNoChangeEmailRequest
		}

		staged := user.NewEmail
		user.NewEmail = ""
		if _, err := h.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return err
		}

		if _, err := h.repo.VerificationTokens().CancelUnverifiedTx(ctx, tx, staged, VerificationTypeUser); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email change cancellation transaction failed")
	}

	return nil
}

// AdminSetEmailMessage replaces a user's email without verification.
// Meant for support tooling; the actor must have update:user.
type AdminSetEmailMessage struct {
	UserID   uuid.UUID `json:"user_id"`
	NewEmail string    `json:"new_email"`
}

func (e AdminSetEmailMessage) Type() string { return "user.email.admin_set" }

type AdminSetEmailHandler struct {
	repo RepositoryManager
}

func NewAdminSetEmailHandler(repo RepositoryManager) *AdminSetEmailHandler {
	return &AdminSetEmailHandler{repo: repo}
}

func (h *AdminSetEmailHandler) Execute(ctx context.Context, event AdminSetEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin email change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AdminSetEmailHandler) execute(ctx context.Context, event AdminSetEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := ValidateEmail(event.NewEmail); err != nil {
		return err
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserDoesNotExist
			}
			return err
		}

		taken, err := h.repo.Users().EmailExistsTx(ctx, tx, event.NewEmail)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}

		user.Email = event.NewEmail
		user.NormalizeEmail()
		if _, err := h.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "admin email change transaction failed")
	}

	return nil
}
