// Package migrations embeds the bridge's SQL migrations so the binary can
// create its keep-open table without shipping loose .sql files.
//
// Import it for side effects wherever a database.DB is migrated.
package migrations

import (
	"embed"

	"github.com/nerrad567/vlx-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
}
