package rbac

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthTemplates persists the email templates keyed by event name
type AuthTemplates interface {
	repository.Repository[*AuthTemplate]

	GetByEvent(ctx context.Context, event string) (*AuthTemplate, error)
	GetByEventTx(ctx context.Context, tx bun.IDB, event string) (*AuthTemplate, error)
}

type authTemplates struct {
	repository.Repository[*AuthTemplate]
	db *bun.DB
}

var _ AuthTemplates = (*authTemplates)(nil)

func NewAuthTemplatesRepository(db *bun.DB) AuthTemplates {
	repo := repository.NewRepository[*AuthTemplate](db, repository.ModelHandlers[*AuthTemplate]{
		NewRecord: func() *AuthTemplate { return &AuthTemplate{} },
		GetID: func(t *AuthTemplate) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *AuthTemplate, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "event"
		},
	})

	return &authTemplates{Repository: repo, db: db}
}

func (a *authTemplates) GetByEvent(ctx context.Context, event string) (*AuthTemplate, error) {
	return a.GetByEventTx(ctx, a.db, event)
}

func (a *authTemplates) GetByEventTx(ctx context.Context, tx bun.IDB, event string) (*AuthTemplate, error) {
	record := &AuthTemplate{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.event = ?", strings.TrimSpace(event)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"event": event,
			})
		}
		return nil, err
	}
	return record, nil
}
