package rbac

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// RegisterModels registers every table with the persistence layer. The
// join tables go first so bun can resolve the m2m relations.
func RegisterModels() {
	persistence.RegisterModel((*RoleUser)(nil))
	persistence.RegisterModel((*RolePermission)(nil))
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*Role)(nil))
	persistence.RegisterModel((*Permission)(nil))
	persistence.RegisterModel((*AuthToken)(nil))
	persistence.RegisterModel((*VerificationToken)(nil))
	persistence.RegisterModel((*AuthTemplate)(nil))
}

type storeOptions struct {
	seed     bool
	fixtures embed.FS
}

// StoreOption customizes SetupStore behavior.
type StoreOption func(*storeOptions)

// WithSeed loads the embedded fixtures after migrating: the role
// catalog and the notification templates.
func WithSeed() StoreOption {
	return func(o *storeOptions) {
		o.seed = true
		o.fixtures = GetFixturesFS()
	}
}

// WithFixtures seeds from a caller-provided fixture FS instead of the
// embedded defaults.
func WithFixtures(fixtures embed.FS) StoreOption {
	return func(o *storeOptions) {
		o.seed = true
		o.fixtures = fixtures
	}
}

// SetupStore registers the models, runs the dialect migrations, and
// optionally seeds the catalog tables. It returns the ready bun handle.
func SetupStore(ctx context.Context, cfg persistence.Config, conn *sql.DB, dialect schema.Dialect, opts ...StoreOption) (*bun.DB, error) {
	o := &storeOptions{}
	for _, opt := range opts {
		opt(o)
	}

	RegisterModels()

	client, err := persistence.New(cfg, conn, dialect)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "persistence client setup failed")
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "migrations filesystem is missing")
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "migration dialect validation failed")
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "migrations failed")
	}

	if o.seed {
		client.RegisterFixtures(o.fixtures)
		if err := client.Seed(ctx); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "fixture seeding failed")
		}
	}

	return client.DB(), nil
}
