package rbac

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Password  string   `json:"password"`
	Roles     []string `json:"roles"`
	// Invited accounts are created on the user's behalf: no password
	// check, no verification code, status invited.
	Invited    bool `json:"invited"`
	UseHashid  bool
	OnResponse func(u *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserHandler struct {
	repo         RepositoryManager
	verification *VerificationService
	logger       Logger
}

// NewRegisterUserHandler creates a handler with sane defaults. The
// verification service is optional; without it no code is issued.
func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithVerificationService enables verification-code issuance on signup.
func (h *RegisterUserHandler) WithVerificationService(vs *VerificationService) *RegisterUserHandler {
	h.verification = vs
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := ValidateEmail(event.Email); err != nil {
		return err
	}

	if err := ValidatePhone(event.Phone, ""); err != nil {
		return err
	}

	if !event.Invited {
		if err := CheckPasswordPolicy(event.Password); err != nil {
			return err
		}
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		if !event.Invited {
			hash, err := HashPassword(event.Password)
			if err != nil {
				var richErr *goerrors.Error
				if goerrors.As(err, &richErr) {
					return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
			}
			user.PasswordHash = hash
			user.Status = UserStatusUnverified
		} else {
			// Invited accounts get a throwaway hash until the user claims
			// the account and sets a real password.
			user.PasswordHash = RandomPasswordHash()
			user.Status = UserStatusInvited
		}

		user.Email = event.Email
		user.Phone = event.Phone
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return err
		}

		if err := h.assignRoles(ctx, tx, user, event.Roles); err != nil {
			return err
		}

		if h.verification != nil && !event.Invited {
			if _, err := h.verification.Issue(ctx, tx, user, VerificationTypeUser); err != nil {
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

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

// assignRoles resolves the requested role names, defaulting to the
// built-in user role when none are given.
func (h *RegisterUserHandler) assignRoles(ctx context.Context, tx bun.IDB, user *User, names []string) error {
	if len(names) == 0 {
		names = []string{RoleNameUser}
	}

	for _, name := range names {
		role, err := h.repo.Roles().GetByNameTx(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err := h.repo.RoleUsers().AssignTx(ctx, tx, role.ID, user.ID); err != nil {
			return err
		}
	}

	return nil
}
