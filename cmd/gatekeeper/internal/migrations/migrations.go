package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects every schema migration registered by this package.
var Migrations = migrate.NewMigrations()
