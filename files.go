package accounts

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package, laid out
// as data/sql/migrations/<dialect>/*.sql
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
