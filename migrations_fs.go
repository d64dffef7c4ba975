package dispatch

import (
	"embed"
	"io/fs"
)

// Postgres scripts live at the tree root, sqlite alternatives in the
// sqlite subdirectory. Both ship in every build so embedded deployments
// can migrate without files alongside the binary.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS exposes every embedded migration script.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetCoreMigrationsFS exposes the delivery engine schema migrations.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
