package rbac

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RequestEmailVerificationMessage struct {
	Email      string `json:"email"`
	OnResponse func(t *VerificationToken)
}

func (e RequestEmailVerificationMessage) Type() string { return "user.verification.request" }

type RequestEmailVerificationHandler struct {
	repo         RepositoryManager
	verification *VerificationService
}

func NewRequestEmailVerificationHandler(repo RepositoryManager, vs *VerificationService) *RequestEmailVerificationHandler {
	return &RequestEmailVerificationHandler{repo: repo, verification: vs}
}

func (h *RequestEmailVerificationHandler) Execute(ctx context.Context, event RequestEmailVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestEmailVerificationHandler) execute(ctx context.Context, event RequestEmailVerificationMessage) error {
	var token *VerificationToken

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByEmailOrPendingTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserDoesNotExist
			}
			return err
		}

		user.EnsureStatus()
		if user.Status != UserStatusUnverified && user.NewEmail == "" {
			return ErrUserAlreadyVerified
		}

		// A verified account with a staged address gets its code resent
		// to that address, not the confirmed one.
		target := user
		if user.Status != UserStatusUnverified {
			staged := *user
			staged.Email = user.NewEmail
			target = &staged
		}

		token, err = h.verification.Issue(ctx, tx, target, VerificationTypeUser)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "verification request transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(token)
	}

	return nil
}

type VerifyEmailMessage struct {
	Email      string `json:"email"`
	Token      string `json:"token"`
	OnResponse func(u *User)
}

func (e VerifyEmailMessage) Type() string { return "user.verification.confirm" }

type VerifyEmailHandler struct {
	repo         RepositoryManager
	verification *VerificationService
	activity     ActivitySink
}

func NewVerifyEmailHandler(repo RepositoryManager, vs *VerificationService) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:         repo,
		verification: vs,
		activity:     noopActivitySink{},
	}
}

// WithActivitySink sets the sink used to emit lifecycle events.
func (h *VerifyEmailHandler) WithActivitySink(sink ActivitySink) *VerifyEmailHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	var user *User

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserDoesNotExist
			}
			return err
		}

		user.EnsureStatus()
		if user.Status == UserStatusActive {
			return ErrUserAlreadyVerified
		}

		if _, err := h.verification.Validate(ctx, tx, event.Email, event.Token, VerificationTypeUser); err != nil {
			return err
		}

		if _, err := h.repo.Users().UpdateStatusTx(ctx, tx, user.ID, UserStatusActive); err != nil {
			return err
		}

		user.Status = UserStatusActive
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email verification transaction failed")
	}

	h.recordActivity(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func (h *VerifyEmailHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventUserStatusChanged,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		FromStatus: UserStatusUnverified,
		ToStatus:   UserStatusActive,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		defLogger{}.Error("activity sink error during email verification: %v", err)
	}
}
