package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/bunx"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// setupTestDB opens an in-memory SQLite database with the schema migrated.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	ctx := context.Background()
	db, err := bunx.NewDB(ctx, "file::memory:", bunx.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}

func createTestAccount(t *testing.T, repo AccountRepository, username string) *models.Account {
	t.Helper()

	account := &models.Account{
		Username:  username,
		Email:     username + "@example.com",
		GivenName: "Test",
		Surname:   "User",
	}
	require.NoError(t, repo.Create(context.Background(), account))
	return account
}
