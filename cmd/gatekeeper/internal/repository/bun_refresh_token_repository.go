package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
	"github.com/uptrace/bun"
)

// BunRefreshTokenRepository implements RefreshTokenRepository using Bun ORM
type BunRefreshTokenRepository struct {
	db *bun.DB
}

// NewBunRefreshTokenRepository creates a new Bun-based refresh token repository
func NewBunRefreshTokenRepository(db *bun.DB) *BunRefreshTokenRepository {
	return &BunRefreshTokenRepository{db: db}
}

// Create records a newly issued refresh token
func (r *BunRefreshTokenRepository) Create(ctx context.Context, token *models.IssuedRefreshToken) error {
	if token.IssuedAt.IsZero() {
		token.IssuedAt = time.Now().UTC()
	}
	if _, err := r.db.NewInsert().Model(token).Exec(ctx); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// MarkUsed consumes a refresh token. The conditional update makes concurrent
// refreshes of the same token race safely: exactly one caller wins.
func (r *BunRefreshTokenRepository) MarkUsed(ctx context.Context, jti string) error {
	result, err := r.db.NewUpdate().
		Model((*models.IssuedRefreshToken)(nil)).
		Set("used_at = ?", time.Now().UTC()).
		Where("jti = ?", jti).
		Where("used_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark refresh token used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("refresh token %s unknown or already used: %w", jti, ErrNotFound)
	}
	return nil
}

// DeleteExpired removes refresh tokens that expired before the cutoff
func (r *BunRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.NewDelete().
		Model((*models.IssuedRefreshToken)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}
