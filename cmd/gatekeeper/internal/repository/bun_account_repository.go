package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/bunx"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
	"github.com/uptrace/bun"
)

// BunAccountRepository implements AccountRepository using Bun ORM
type BunAccountRepository struct {
	db *bun.DB
}

// NewBunAccountRepository creates a new Bun-based account repository
func NewBunAccountRepository(db *bun.DB) *BunAccountRepository {
	return &BunAccountRepository{db: db}
}

// Create inserts a new account. ID, status and timestamps are filled in when empty.
func (r *BunAccountRepository) Create(ctx context.Context, account *models.Account) error {
	now := time.Now().UTC()
	if account.ID == "" {
		account.ID = bunx.NewUUIDv7()
	}
	if account.Status == "" {
		account.Status = models.AccountStatusEnabled
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.ModifiedAt = now

	if _, err := r.db.NewInsert().Model(account).Exec(ctx); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its ID
func (r *BunAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getBy(ctx, "id", id)
}

// GetByUsername retrieves an account by its username
func (r *BunAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getBy(ctx, "username", username)
}

// GetByEmail retrieves an account by its email
func (r *BunAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getBy(ctx, "email", email)
}

func (r *BunAccountRepository) getBy(ctx context.Context, column, value string) (*models.Account, error) {
	account := new(models.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("? = ?", bun.Ident(column), value).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account with %s %q: %w", column, value, ErrNotFound)
		}
		return nil, fmt.Errorf("get account by %s: %w", column, err)
	}
	return account, nil
}

// SetStatus changes the account status (ENABLED, DISABLED, UNVERIFIED)
func (r *BunAccountRepository) SetStatus(ctx context.Context, id, status string) error {
	result, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("status = ?", status).
		Set("modified_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set account status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return nil
}

// List retrieves all accounts, newest first
func (r *BunAccountRepository) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.NewSelect().
		Model(&accounts).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}
