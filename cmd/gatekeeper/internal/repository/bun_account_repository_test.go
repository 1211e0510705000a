package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
)

func TestBunAccountRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunAccountRepository(db)
	ctx := context.Background()

	t.Run("fills defaults", func(t *testing.T) {
		account := createTestAccount(t, repo, "jsmith")

		assert.NotEmpty(t, account.ID)
		assert.Equal(t, models.AccountStatusEnabled, account.Status)
		assert.False(t, account.CreatedAt.IsZero())
		assert.False(t, account.ModifiedAt.IsZero())
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		err := repo.Create(ctx, &models.Account{Username: "jsmith", Email: "other@example.com"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestBunAccountRepository_Lookup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunAccountRepository(db)
	ctx := context.Background()

	created := createTestAccount(t, repo, "alice")

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, "alice@example.com", byID.Email)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, "does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBunAccountRepository_SetStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunAccountRepository(db)
	ctx := context.Background()

	account := createTestAccount(t, repo, "bob")

	require.NoError(t, repo.SetStatus(ctx, account.ID, models.AccountStatusDisabled))

	fetched, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusDisabled, fetched.Status)
	assert.False(t, fetched.IsEnabled())

	err = repo.SetStatus(ctx, "missing", models.AccountStatusEnabled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBunAccountRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunAccountRepository(db)

	createTestAccount(t, repo, "one")
	createTestAccount(t, repo, "two")

	accounts, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}
