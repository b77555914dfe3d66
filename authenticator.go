package rbac

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auther issues, rotates, and revokes session token pairs.
type Auther struct {
	repos        RepositoryManager
	tokenService TokenService
	logger       Logger
	activitySink ActivitySink
	rolePriority []string
	now          func() time.Time
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator backed by the repositories.
func NewAuthenticator(repos RepositoryManager, opts Config) *Auther {
	return &Auther{
		repos:        repos,
		tokenService: NewTokenServiceFromConfig(opts, defLogger{}),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		rolePriority: opts.GetRolePriority(),
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	return s
}

// WithTokenService overrides the token service, e.g. to share one
// instance with the HTTP layer.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock != nil {
		s.now = clock
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and issues a fresh token pair. Accounts
// that are not active are rejected with a status-specific error before
// the password is even checked.
func (s *Auther) Login(ctx context.Context, email, password string) (*AuthToken, error) {
	user, err := s.repos.Users().GetByIdentifier(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			err = ErrUserDoesNotExist
		}
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": email,
			"error":      err.Error(),
		})
		return nil, err
	}

	user.EnsureStatus()
	if user.Status != UserStatusActive {
		statusErr := UserStatusError(user.Status)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFor(user), user.ID.String(), map[string]any{
			"identifier": email,
			"status":     user.Status,
		})
		return nil, statusErr
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFor(user), user.ID.String(), map[string]any{
			"identifier": email,
		})
		return nil, ErrPasswordIncorrect
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFor(user), user.ID.String(), map[string]any{
		"identifier": email,
	})

	return pair, nil
}

// RefreshSession rotates a token pair: the presented refresh token's row
// is destroyed and a fresh pair issued, so a refresh token is single use.
func (s *Auther) RefreshSession(ctx context.Context, refreshToken string) (*AuthToken, error) {
	claims, err := s.tokenService.Validate(refreshToken)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}
	if claims.TokenType() != TokenTypeRefresh {
		return nil, ErrRefreshTokenInvalid
	}

	row, err := s.repos.AuthTokens().GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, err
	}

	user := row.User
	if user == nil {
		return nil, ErrRefreshTokenInvalid
	}
	user.EnsureStatus()
	if user.Status != UserStatusActive {
		return nil, ErrUserNotActive
	}

	var pair *AuthToken
	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repos.AuthTokens().DeleteByIDTx(ctx, tx, row.ID); err != nil {
			return err
		}
		pair, err = s.issuePairTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefresh, s.actorFor(user), user.ID.String(), nil)

	return pair, nil
}

// Logout destroys the session matching the access token. A token that
// matches no session is not an error: the caller is logged out either way,
// and the boolean reports whether a session was actually removed.
func (s *Auther) Logout(ctx context.Context, accessToken string) (bool, error) {
	row, err := s.repos.AuthTokens().GetByAccessToken(ctx, accessToken)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return false, nil
		}
		return false, err
	}

	if err := s.repos.AuthTokens().DeleteByID(ctx, row.ID); err != nil {
		return false, err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, ActorRef{ID: row.UserID.String(), Type: "user"}, row.UserID.String(), nil)

	return true, nil
}

// LogoutAll revokes every session of the user and reports how many were
// destroyed. Only active accounts can revoke their sessions this way;
// admin deactivation uses the repositories directly.
func (s *Auther) LogoutAll(ctx context.Context, userID uuid.UUID) (int, error) {
	user, err := s.repos.Users().GetByID(ctx, userID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return 0, ErrUserDoesNotExist
		}
		return 0, err
	}

	user.EnsureStatus()
	if user.Status != UserStatusActive {
		return 0, ErrUserNotActive
	}

	count, err := s.repos.AuthTokens().DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, s.actorFor(user), userID.String(), map[string]any{
		"sessions": count,
	})

	return count, nil
}

// SessionFromToken decodes and verifies an access token.
func (s *Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed: %v", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims: %v", err)
		return nil, err
	}

	return session, nil
}

// VerifySession is the store-backed variant of SessionFromToken: the
// signature must check out and a live auth_tokens row must still back
// the token, so revoked sessions fail before their expiry would. A
// missing row is a soft failure, not an error.
func (s *Auther) VerifySession(ctx context.Context, accessToken string) (Session, bool, error) {
	session, err := s.SessionFromToken(accessToken)
	if err != nil {
		return nil, false, err
	}

	if _, err := s.repos.AuthTokens().GetByAccessToken(ctx, accessToken); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return session, true, nil
}

// VerifyPassword checks a password against the stored hash without
// issuing tokens, used by flows that re-authenticate a logged-in user.
func (s *Auther) VerifyPassword(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.repos.Users().GetByID(ctx, userID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserDoesNotExist
		}
		return err
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return ErrPasswordIncorrect
	}

	return nil
}

func (s *Auther) issuePair(ctx context.Context, user *User) (*AuthToken, error) {
	var pair *AuthToken
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		pair, err = s.issuePairTx(ctx, tx, user)
		return err
	})
	return pair, err
}

func (s *Auther) issuePairTx(ctx context.Context, tx bun.IDB, user *User) (*AuthToken, error) {
	records, err := s.repos.Roles().OfUserTx(ctx, tx, user.ID)
	if err != nil {
		return nil, err
	}
	roles := RoleNames(records)

	access, _, err := s.tokenService.Generate(user, roles, TokenTypeAccess)
	if err != nil {
		return nil, s.mintFailure(err)
	}

	refresh, refreshExpiry, err := s.tokenService.Generate(user, roles, TokenTypeRefresh)
	if err != nil {
		return nil, s.mintFailure(err)
	}

	record := &AuthToken{
		ID:           uuid.New(),
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       user.ID,
		ExpiresAt:    &refreshExpiry,
	}

	created, err := s.repos.AuthTokens().CreateTx(ctx, tx, record)
	if err != nil {
		return nil, s.mintFailure(err)
	}

	created.User = user
	return created, nil
}

func (s *Auther) mintFailure(err error) error {
	s.logger.Error("auth token issuance failed: %v", err)
	clone := ErrCouldNotCreateAuthToken.Clone()
	clone.Source = err
	return clone
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Error("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFor(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}
