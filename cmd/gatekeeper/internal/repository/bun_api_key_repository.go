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

// BunAPIKeyRepository implements APIKeyRepository using Bun ORM
type BunAPIKeyRepository struct {
	db *bun.DB
}

// NewBunAPIKeyRepository creates a new Bun-based API key repository
func NewBunAPIKeyRepository(db *bun.DB) *BunAPIKeyRepository {
	return &BunAPIKeyRepository{db: db}
}

// Create inserts a new API key. The caller supplies the bcrypt secret hash.
func (r *BunAPIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if key.ID == "" {
		key.ID = bunx.NewAPIKeyID()
	}
	if key.Status == "" {
		key.Status = models.APIKeyStatusEnabled
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.NewInsert().Model(key).Exec(ctx); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// GetByID retrieves an API key by its public ID
func (r *BunAPIKeyRepository) GetByID(ctx context.Context, id string) (*models.APIKey, error) {
	key := new(models.APIKey)
	err := r.db.NewSelect().
		Model(key).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("api key %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return key, nil
}

// ListByAccount retrieves all API keys owned by an account
func (r *BunAPIKeyRepository) ListByAccount(ctx context.Context, accountID string) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := r.db.NewSelect().
		Model(&keys).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// SetStatus enables or disables an API key
func (r *BunAPIKeyRepository) SetStatus(ctx context.Context, id, status string) error {
	result, err := r.db.NewUpdate().
		Model((*models.APIKey)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set api key status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("api key %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateLastUsed records that the key just authenticated a request
func (r *BunAPIKeyRepository) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.APIKey)(nil)).
		Set("last_used_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}
