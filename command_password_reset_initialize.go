package rbac

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "password.reset.initialize" }

type InitializePasswordResetResponse struct {
	// ExpiresAt is when the issued code stops being valid.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type InitializePasswordResetHandler struct {
	repo         RepositoryManager
	verification *VerificationService
}

func NewInitializePasswordResetHandler(repo RepositoryManager, vs *VerificationService) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{repo: repo, verification: vs}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

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

		token, err := h.verification.Issue(ctx, tx, user, VerificationTypeForgotPassword)
		if err != nil {
			return err
		}

		resp.ExpiresAt = token.ExpiredAt
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset initialization failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

type VerifyPasswordResetCodeMessage struct {
	Email      string `json:"email"`
	Token      string `json:"token"`
	OnResponse func(resp *VerifyPasswordResetCodeResponse)
}

func (e VerifyPasswordResetCodeMessage) Type() string { return "password.reset.verify" }

type VerifyPasswordResetCodeResponse struct {
	Valid bool `json:"valid"`
}

// VerifyPasswordResetCodeHandler checks a reset code without consuming
// it, so clients can confirm the code before collecting the new password.
type VerifyPasswordResetCodeHandler struct {
	repo         RepositoryManager
	verification *VerificationService
}

func NewVerifyPasswordResetCodeHandler(repo RepositoryManager, vs *VerificationService) *VerifyPasswordResetCodeHandler {
	return &VerifyPasswordResetCodeHandler{repo: repo, verification: vs}
}

func (h *VerifyPasswordResetCodeHandler) Execute(ctx context.Context, event VerifyPasswordResetCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during reset code verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyPasswordResetCodeHandler) execute(ctx context.Context, event VerifyPasswordResetCodeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.verification.Peek(ctx, tx, event.Email, event.Token, VerificationTypeForgotPassword)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "reset code verification failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyPasswordResetCodeResponse{Valid: true})
	}

	return nil
}
