package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
	"github.com/uptrace/bun"
)

// BunCustomDataRepository implements CustomDataRepository using Bun ORM
type BunCustomDataRepository struct {
	db *bun.DB
}

// NewBunCustomDataRepository creates a new Bun-based custom data repository
func NewBunCustomDataRepository(db *bun.DB) *BunCustomDataRepository {
	return &BunCustomDataRepository{db: db}
}

// Get retrieves the bundle for an account, or an empty bundle stamped with
// the current time when none has been stored yet.
func (r *BunCustomDataRepository) Get(ctx context.Context, accountID string) (*models.CustomData, error) {
	data := new(models.CustomData)
	err := r.db.NewSelect().
		Model(data).
		Where("account_id = ?", accountID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			now := time.Now().UTC()
			return &models.CustomData{
				AccountID:  accountID,
				Data:       models.JSONMap{},
				CreatedAt:  now,
				ModifiedAt: now,
			}, nil
		}
		return nil, fmt.Errorf("get custom data: %w", err)
	}
	if data.Data == nil {
		data.Data = models.JSONMap{}
	}
	return data, nil
}

// Upsert merges data into the account's stored bundle.
func (r *BunCustomDataRepository) Upsert(ctx context.Context, accountID string, data map[string]any) (*models.CustomData, error) {
	var result *models.CustomData

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := new(models.CustomData)
		err := tx.NewSelect().
			Model(existing).
			Where("account_id = ?", accountID).
			Scan(ctx)

		now := time.Now().UTC()
		switch {
		case errors.Is(err, sql.ErrNoRows):
			existing = &models.CustomData{
				AccountID: accountID,
				Data:      models.JSONMap{},
				CreatedAt: now,
			}
			for k, v := range data {
				existing.Data[k] = v
			}
			existing.ModifiedAt = now
			if _, err := tx.NewInsert().Model(existing).Exec(ctx); err != nil {
				return fmt.Errorf("insert custom data: %w", err)
			}
		case err != nil:
			return fmt.Errorf("load custom data: %w", err)
		default:
			if existing.Data == nil {
				existing.Data = models.JSONMap{}
			}
			for k, v := range data {
				existing.Data[k] = v
			}
			existing.ModifiedAt = now
			if _, err := tx.NewUpdate().
				Model(existing).
				Column("data", "modified_at").
				WherePK().
				Exec(ctx); err != nil {
				return fmt.Errorf("update custom data: %w", err)
			}
		}

		result = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
