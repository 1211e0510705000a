package repository

import (
	"context"
	"errors"
	"time"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
)

// ErrNotFound is wrapped by every repository lookup that matches no row, so
// callers can tell a missing record apart from a database failure.
var ErrNotFound = errors.New("not found")

// AccountRepository exposes persistence operations for directory accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	SetStatus(ctx context.Context, id, status string) error
	List(ctx context.Context) ([]models.Account, error)
}

// APIKeyRepository exposes persistence operations for account API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByID(ctx context.Context, id string) (*models.APIKey, error)
	ListByAccount(ctx context.Context, accountID string) ([]models.APIKey, error)
	SetStatus(ctx context.Context, id, status string) error
	UpdateLastUsed(ctx context.Context, id string) error
}

// CustomDataRepository exposes the per-account extended attribute bundle.
type CustomDataRepository interface {
	// Get returns the bundle for accountID. Accounts without stored data get
	// an empty bundle, not ErrNotFound.
	Get(ctx context.Context, accountID string) (*models.CustomData, error)
	// Upsert merges data into the stored bundle.
	Upsert(ctx context.Context, accountID string, data map[string]any) (*models.CustomData, error)
}

// RefreshTokenRepository tracks issued refresh tokens for single-use rotation.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.IssuedRefreshToken) error
	// MarkUsed atomically flags the token as consumed. It returns ErrNotFound
	// if the token is unknown or was already used.
	MarkUsed(ctx context.Context, jti string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
