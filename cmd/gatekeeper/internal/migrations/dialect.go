package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// IsPostgreSQL checks if the database is PostgreSQL
func IsPostgreSQL(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}

// foreignKey returns a table-level FOREIGN KEY clause referencing accounts(id).
// SQLite and PostgreSQL accept the same syntax; the helper only keeps the
// cascade rule consistent across tables.
func foreignKey(column string) string {
	return `("` + column + `") REFERENCES "accounts" ("id") ON DELETE CASCADE`
}
