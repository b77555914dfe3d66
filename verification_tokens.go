package rbac

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// OTPLength is the number of digits in a verification code.
	OTPLength = 6
	// OTPTTL is how long a code stays valid.
	OTPTTL = 5 * time.Minute
	// OTPThrottleWindow is the issuance rate-limit window.
	OTPThrottleWindow = 10 * time.Minute
	// OTPThrottleMax is the number of codes allowed per window per email
	// and flow.
	OTPThrottleMax = 3
)

// Notification events rendered by the Notifier.
const (
	EventSendUserVerificationToken = "send_user_verification_token"
	EventSendForgotPasswordToken   = "send_forgot_password_token"
)

// GenerateOTP returns a zero-padded numeric code of OTPLength digits.
func GenerateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < OTPLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate otp")
	}
	return fmt.Sprintf("%0*d", OTPLength, n), nil
}

// VerificationServiceOption customizes a VerificationService.
type VerificationServiceOption func(*VerificationService)

// WithVerificationClock injects a custom clock (useful for tests).
func WithVerificationClock(clock func() time.Time) VerificationServiceOption {
	return func(s *VerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithVerificationNotifier sets the outbound email sender. Without one,
// issued codes are only persisted.
func WithVerificationNotifier(n Notifier) VerificationServiceOption {
	return func(s *VerificationService) {
		s.notifier = n
	}
}

// WithVerificationURL sets the base URL embedded in notification
// variables so templates can render a clickable link.
func WithVerificationURL(url string) VerificationServiceOption {
	return func(s *VerificationService) {
		s.baseURL = url
	}
}

// WithVerificationLogger overrides the logger.
func WithVerificationLogger(logger Logger) VerificationServiceOption {
	return func(s *VerificationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// VerificationService issues and validates one-time codes.
type VerificationService struct {
	repos    RepositoryManager
	notifier Notifier
	logger   Logger
	now      func() time.Time
	baseURL  string
}

func NewVerificationService(repos RepositoryManager, opts ...VerificationServiceOption) *VerificationService {
	s := &VerificationService{
		repos:  repos,
		logger: defLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Issue creates a fresh code for the user and flow. Earlier unverified
// codes of the same flow are cancelled first so only one code is live at
// a time. Issuance is throttled per email and flow: cancelled and
// unverified codes from the window count, verified ones do not.
func (s *VerificationService) Issue(ctx context.Context, tx bun.IDB, user *User, tokenType VerificationTokenType) (*VerificationToken, error) {
	if user == nil {
		return nil, ErrUserNotFound
	}
	if tx == nil {
		return nil, goerrors.New("issue requires a db handle", goerrors.CategoryBadInput)
	}

	tokens := s.repos.VerificationTokens()

	since := s.now().Add(-OTPThrottleWindow)
	count, err := tokens.CountRecentTx(ctx, tx, user.Email, tokenType, since)
	if err != nil {
		return nil, err
	}
	if count >= OTPThrottleMax {
		return nil, s.throttleError(tokenType)
	}

	if _, err := tokens.CancelUnverifiedTx(ctx, tx, user.Email, tokenType); err != nil {
		return nil, err
	}

	code, err := GenerateOTP()
	if err != nil {
		return nil, err
	}

	expiredAt := s.now().Add(OTPTTL)
	record := &VerificationToken{
		ID:        uuid.New(),
		Email:     normalizeEmail(user.Email),
		Token:     code,
		Type:      tokenType,
		Status:    VerificationStatusUnverified,
		ExpiredAt: &expiredAt,
		UserID:    user.ID,
	}

	created, err := tokens.CreateTx(ctx, tx, record)
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, user, created)

	return created, nil
}

// Validate consumes a code: the matching live code is marked verified
// and every row carrying the tuple is deleted, so the same code can
// never validate twice.
func (s *VerificationService) Validate(ctx context.Context, tx bun.IDB, email, code string, tokenType VerificationTokenType) (*VerificationToken, error) {
	tokens := s.repos.VerificationTokens()

	record, err := tokens.GetLiveTx(ctx, tx, email, code, tokenType)
	if err != nil {
		return nil, err
	}

	if record.Expired(s.now()) {
		return nil, ErrOTPExpired.Clone().WithMetadata(map[string]any{
			"type": tokenType,
		})
	}

	if err := tokens.MarkVerifiedTx(ctx, tx, record.ID); err != nil {
		return nil, err
	}

	if _, err := tokens.DeleteMatchingTx(ctx, tx, email, code, tokenType); err != nil {
		return nil, err
	}

	record.Status = VerificationStatusVerified
	return record, nil
}

// Peek checks a code without consuming it, used by the forgot-password
// flow to confirm a code before the user submits a new password.
func (s *VerificationService) Peek(ctx context.Context, tx bun.IDB, email, code string, tokenType VerificationTokenType) error {
	record, err := s.repos.VerificationTokens().GetLiveTx(ctx, tx, email, code, tokenType)
	if err != nil {
		return err
	}
	if record.Expired(s.now()) {
		return ErrOTPExpired.Clone().WithMetadata(map[string]any{
			"type": tokenType,
		})
	}
	return nil
}

func (s *VerificationService) throttleError(tokenType VerificationTokenType) error {
	if tokenType == VerificationTypeForgotPassword {
		return ErrTooManyForgotPassword
	}
	return ErrTooManyResendVerification
}

func (s *VerificationService) deliver(ctx context.Context, user *User, record *VerificationToken) {
	if s.notifier == nil {
		return
	}

	event := EventSendUserVerificationToken
	if record.Type == VerificationTypeForgotPassword {
		event = EventSendForgotPasswordToken
	}

	variables := map[string]string{
		"email":    user.Email,
		"token":    record.Token,
		"url":      s.baseURL,
		"username": user.FirstName,
	}

	if err := s.notifier.Notify(ctx, event, user.Email, variables); err != nil {
		// Delivery failure must not roll back issuance; the user can
		// request a resend.
		s.logger.Error("verification notify %s failed: %v", event, err)
	}
}
