package db

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DevMode reads migrations from the source tree instead of the binary, so
// edited SQL takes effect without a rebuild.
var DevMode = false

const devMigrationsDir = "internal/db/migrations"

// getMigrationsFS returns the migrations directory as the root of an fs.FS.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		if _, err := os.Stat(devMigrationsDir); err == nil {
			return os.DirFS(devMigrationsDir), nil
		}
	}
	return fs.Sub(migrationsFS, "migrations")
}
