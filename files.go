package rbac

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed data/fixtures/*.yml
var fixturesFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// GetFixturesFS returns the default seed fixtures: the role catalog,
// the permission matrix, and the notification templates.
func GetFixturesFS() embed.FS {
	return fixturesFS
}
