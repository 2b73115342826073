// Package migrations embeds the SQL migration files applied via bun's
// migrate.Migrator (see internal/infrastructure/storage/migrate.go).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
