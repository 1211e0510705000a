package migrations

import (
	"context"
	"fmt"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261016000001, down_20261016000001)
}

// up_20261016000001 creates the directory tables: accounts, api_keys,
// custom_data and refresh_tokens.
func up_20261016000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating accounts table...")
	if _, err := db.NewCreateTable().
		Model((*models.Account)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating api_keys table...")
	if _, err := db.NewCreateTable().
		Model((*models.APIKey)(nil)).
		IfNotExists().
		ForeignKey(foreignKey("account_id")).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create api_keys table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_api_keys_account_id ON api_keys(account_id)`); err != nil {
		return fmt.Errorf("failed to create api_keys account index: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating custom_data table...")
	if _, err := db.NewCreateTable().
		Model((*models.CustomData)(nil)).
		IfNotExists().
		ForeignKey(foreignKey("account_id")).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create custom_data table: %w", err)
	}
	if IsPostgreSQL(db) {
		if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_custom_data_data ON custom_data USING GIN (data)`); err != nil {
			return fmt.Errorf("failed to create custom_data gin index: %w", err)
		}
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating refresh_tokens table...")
	if _, err := db.NewCreateTable().
		Model((*models.IssuedRefreshToken)(nil)).
		IfNotExists().
		ForeignKey(foreignKey("account_id")).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create refresh_tokens table: %w", err)
	}
	// Cleanup queries filter on expires_at.
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires_at ON refresh_tokens(expires_at)`); err != nil {
		return fmt.Errorf("failed to create refresh_tokens expiry index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20261016000001 drops the directory tables in dependency order.
func down_20261016000001(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		name  string
		model any
	}{
		{"refresh_tokens", (*models.IssuedRefreshToken)(nil)},
		{"custom_data", (*models.CustomData)(nil)},
		{"api_keys", (*models.APIKey)(nil)},
		{"accounts", (*models.Account)(nil)},
	}

	for _, table := range tables {
		fmt.Printf(" [down] dropping %s table...", table.name)
		if _, err := db.NewDropTable().
			Model(table.model).
			IfExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table.name, err)
		}
		fmt.Println(" OK")
	}

	return nil
}
