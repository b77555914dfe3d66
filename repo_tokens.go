package rbac

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthTokens persists session credential pairs
type AuthTokens interface {
	repository.Repository[*AuthToken]

	GetByAccessToken(ctx context.Context, token string) (*AuthToken, error)
	GetByAccessTokenTx(ctx context.Context, tx bun.IDB, token string) (*AuthToken, error)
	GetByRefreshToken(ctx context.Context, token string) (*AuthToken, error)
	GetByRefreshTokenTx(ctx context.Context, tx bun.IDB, token string) (*AuthToken, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

type authTokens struct {
	repository.Repository[*AuthToken]
	db *bun.DB
}

var _ AuthTokens = (*authTokens)(nil)

func NewAuthTokensRepository(db *bun.DB) AuthTokens {
	repo := repository.NewRepository[*AuthToken](db, repository.ModelHandlers[*AuthToken]{
		NewRecord: func() *AuthToken { return &AuthToken{} },
		GetID: func(t *AuthToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *AuthToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &authTokens{Repository: repo, db: db}
}

func (a *authTokens) GetByAccessToken(ctx context.Context, token string) (*AuthToken, error) {
	return a.GetByAccessTokenTx(ctx, a.db, token)
}

func (a *authTokens) GetByAccessTokenTx(ctx context.Context, tx bun.IDB, token string) (*AuthToken, error) {
	return a.getByColumnTx(ctx, tx, "access_token", token)
}

func (a *authTokens) GetByRefreshToken(ctx context.Context, token string) (*AuthToken, error) {
	return a.GetByRefreshTokenTx(ctx, a.db, token)
}

func (a *authTokens) GetByRefreshTokenTx(ctx context.Context, tx bun.IDB, token string) (*AuthToken, error) {
	return a.getByColumnTx(ctx, tx, "refresh_token", token)
}

func (a *authTokens) getByColumnTx(ctx context.Context, tx bun.IDB, column, token string) (*AuthToken, error) {
	record := &AuthToken{}
	err := tx.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias."+column+" = ?", strings.TrimSpace(token)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"column": column,
			})
		}
		return nil, err
	}
	return record, nil
}

func (a *authTokens) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return a.DeleteByIDTx(ctx, a.db, id)
}

func (a *authTokens) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*AuthToken)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return err
}

func (a *authTokens) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return a.DeleteAllForUserTx(ctx, a.db, userID)
}

func (a *authTokens) DeleteAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	res, err := tx.NewDelete().
		Model((*AuthToken)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteExpired drops sessions whose refresh window closed before cutoff.
// Run it from a maintenance job; nothing in the request path depends on it.
func (a *authTokens) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := a.db.NewDelete().
		Model((*AuthToken)(nil)).
		Where("?TableAlias.expires_at IS NOT NULL").
		Where("?TableAlias.expires_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// VerificationTokens persists one-time codes
type VerificationTokens interface {
	repository.Repository[*VerificationToken]

	CountRecent(ctx context.Context, email string, tokenType VerificationTokenType, since time.Time) (int, error)
	CountRecentTx(ctx context.Context, tx bun.IDB, email string, tokenType VerificationTokenType, since time.Time) (int, error)
	CancelUnverified(ctx context.Context, email string, tokenType VerificationTokenType) (int, error)
	CancelUnverifiedTx(ctx context.Context, tx bun.IDB, email string, tokenType VerificationTokenType) (int, error)
	GetLive(ctx context.Context, email, token string, tokenType VerificationTokenType) (*VerificationToken, error)
	GetLiveTx(ctx context.Context, tx bun.IDB, email, token string, tokenType VerificationTokenType) (*VerificationToken, error)
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteMatchingTx(ctx context.Context, tx bun.IDB, email, token string, tokenType VerificationTokenType) (int, error)
}

type verificationTokens struct {
	repository.Repository[*VerificationToken]
	db *bun.DB
}

var _ VerificationTokens = (*verificationTokens)(nil)

func NewVerificationTokensRepository(db *bun.DB) VerificationTokens {
	repo := repository.NewRepository[*VerificationToken](db, repository.ModelHandlers[*VerificationToken]{
		NewRecord: func() *VerificationToken { return &VerificationToken{} },
		GetID: func(t *VerificationToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *VerificationToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &verificationTokens{Repository: repo, db: db}
}

func (v *verificationTokens) CountRecent(ctx context.Context, email string, tokenType VerificationTokenType, since time.Time) (int, error) {
	return v.CountRecentTx(ctx, v.db, email, tokenType, since)
}

// CountRecentTx counts codes issued in the throttle window. Verified codes
// do not count against the caller; unverified and cancelled ones do.
func (v *verificationTokens) CountRecentTx(ctx context.Context, tx bun.IDB, email string, tokenType VerificationTokenType, since time.Time) (int, error) {
	return tx.NewSelect().
		Model((*VerificationToken)(nil)).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Where("?TableAlias.type = ?", tokenType).
		Where("?TableAlias.status IN (?)", bun.In([]VerificationTokenStatus{VerificationStatusUnverified, VerificationStatusCancelled})).
		Where("?TableAlias.created_at >= ?", since).
		Count(ctx)
}

func (v *verificationTokens) CancelUnverified(ctx context.Context, email string, tokenType VerificationTokenType) (int, error) {
	return v.CancelUnverifiedTx(ctx, v.db, email, tokenType)
}

func (v *verificationTokens) CancelUnverifiedTx(ctx context.Context, tx bun.IDB, email string, tokenType VerificationTokenType) (int, error) {
	res, err := tx.NewUpdate().
		Model((*VerificationToken)(nil)).
		Set("status = ?", VerificationStatusCancelled).
		Set("updated_at = ?", time.Now()).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Where("?TableAlias.type = ?", tokenType).
		Where("?TableAlias.status = ?", VerificationStatusUnverified).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (v *verificationTokens) GetLive(ctx context.Context, email, token string, tokenType VerificationTokenType) (*VerificationToken, error) {
	return v.GetLiveTx(ctx, v.db, email, token, tokenType)
}

// GetLiveTx finds the unverified code matching the tuple. Expiry is the
// caller's check so it can distinguish invalid from expired.
func (v *verificationTokens) GetLiveTx(ctx context.Context, tx bun.IDB, email, token string, tokenType VerificationTokenType) (*VerificationToken, error) {
	record := &VerificationToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Where("?TableAlias.token = ?", strings.TrimSpace(token)).
		Where("?TableAlias.type = ?", tokenType).
		Where("?TableAlias.status = ?", VerificationStatusUnverified).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrOTPNotValid.Clone().WithMetadata(map[string]any{
				"type": tokenType,
			})
		}
		return nil, err
	}
	return record, nil
}

func (v *verificationTokens) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewUpdate().
		Model((*VerificationToken)(nil)).
		Set("status = ?", VerificationStatusVerified).
		Set("updated_at = ?", time.Now()).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return err
}

// DeleteMatchingTx removes every row matching the tuple so a consumed
// code can never validate twice.
func (v *verificationTokens) DeleteMatchingTx(ctx context.Context, tx bun.IDB, email, token string, tokenType VerificationTokenType) (int, error) {
	res, err := tx.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Where("?TableAlias.token = ?", strings.TrimSpace(token)).
		Where("?TableAlias.type = ?", tokenType).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
