package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
)

func TestBunAPIKeyRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	accounts := NewBunAccountRepository(db)
	repo := NewBunAPIKeyRepository(db)
	ctx := context.Background()

	owner := createTestAccount(t, accounts, "keyholder")

	key := &models.APIKey{AccountID: owner.ID, SecretHash: "$2a$10$hash"}
	require.NoError(t, repo.Create(ctx, key))
	assert.Len(t, key.ID, 32)
	assert.Equal(t, models.APIKeyStatusEnabled, key.Status)

	fetched, err := repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, fetched.AccountID)
	assert.Nil(t, fetched.LastUsedAt)

	require.NoError(t, repo.UpdateLastUsed(ctx, key.ID))
	fetched, err = repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.NotNil(t, fetched.LastUsedAt)

	require.NoError(t, repo.SetStatus(ctx, key.ID, models.APIKeyStatusDisabled))
	fetched, err = repo.GetByID(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, models.APIKeyStatusDisabled, fetched.Status)

	keys, err := repo.ListByAccount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	_, err = repo.GetByID(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBunAPIKeyRepository_RequiresAccount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunAPIKeyRepository(db)

	err := repo.Create(context.Background(), &models.APIKey{AccountID: "ghost", SecretHash: "x"})
	assert.Error(t, err)
}
