package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/bunx"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/migrations"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/repository"
)

const testServerURL = "http://gatekeeper.test"

func newTestDB(t *testing.T) *bun.DB {
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

func newTestDirectory(t *testing.T, opts DirectoryOptions) (*Directory, *bun.DB) {
	t.Helper()

	db := newTestDB(t)
	keys, err := auth.GenerateKeySet()
	require.NoError(t, err)

	opts.ServerURL = testServerURL
	if opts.Validator == nil {
		opts.Validator = auth.NewKeySetValidator(keys, testServerURL, "")
	}
	if opts.Refresher == nil && opts.Issuer == nil {
		opts.Issuer = auth.NewIssuer(keys, auth.IssuerOptions{
			Issuer:     testServerURL,
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		})
	}

	dir, err := NewDirectory(DirectoryDependencies{
		Accounts:      repository.NewBunAccountRepository(db),
		APIKeys:       repository.NewBunAPIKeyRepository(db),
		CustomData:    repository.NewBunCustomDataRepository(db),
		RefreshTokens: repository.NewBunRefreshTokenRepository(db),
	}, opts)
	require.NoError(t, err)
	return dir, db
}

func createAccount(t *testing.T, dir *Directory, username string) *Account {
	t.Helper()
	account, err := dir.CreateAccount(context.Background(), NewAccount{
		Username:  username,
		Email:     username + "@example.com",
		GivenName: "Given",
		Surname:   "Surname",
	})
	require.NoError(t, err)
	return account
}

func TestDirectory_GetAccountByReference(t *testing.T) {
	dir, _ := newTestDirectory(t, DirectoryOptions{})
	ctx := context.Background()

	created := createAccount(t, dir, "jlpicard")
	assert.Equal(t, testServerURL+"/v1/accounts/"+created.ID, created.Href)

	for name, ref := range map[string]string{
		"href":     created.Href,
		"bare id":  created.ID,
		"username": "jlpicard",
	} {
		t.Run(name, func(t *testing.T) {
			account, err := dir.GetAccountByReference(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, created.ID, account.ID)
			assert.Equal(t, "jlpicard@example.com", account.Email)
			assert.Equal(t, "Given", account.GivenName)
			assert.Equal(t, "Surname", account.Surname)
			assert.Equal(t, StatusEnabled, account.Status)
		})
	}

	for name, ref := range map[string]string{
		"unknown id":      "nope",
		"empty":           "",
		"foreign href":    "https://elsewhere.test/v1/accounts/" + created.ID,
		"nested href":     created.Href + "/customData",
		"path without id": testServerURL + "/v1/accounts/",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := dir.GetAccountByReference(ctx, ref)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.False(t, IsProviderFailure(err))
		})
	}
}

func TestDirectory_StatusIsReturnedLive(t *testing.T) {
	dir, _ := newTestDirectory(t, DirectoryOptions{})
	ctx := context.Background()

	account := createAccount(t, dir, "disabled")
	require.NoError(t, dir.SetAccountStatus(ctx, account.Href, StatusDisabled))

	fetched, err := dir.GetAccountByReference(ctx, account.Href)
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, fetched.Status)
	assert.False(t, fetched.IsEnabled())

	assert.Error(t, dir.SetAccountStatus(ctx, account.Href, "BANNED"))
}

func TestDirectory_CreateAccountValidation(t *testing.T) {
	dir, _ := newTestDirectory(t, DirectoryOptions{})
	ctx := context.Background()

	_, err := dir.CreateAccount(ctx, NewAccount{Username: "alice:1", Email: "alice@example.com"})
	assert.Error(t, err)

	_, err = dir.CreateAccount(ctx, NewAccount{Username: "alice", Email: "alice"})
	assert.Error(t, err)

	_, err = dir.CreateAccount(ctx, NewAccount{Username: "alice", Email: "alice@example.com", Status: "BANNED"})
	assert.Error(t, err)

	accounts, err := dir.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestDirectory_DatabaseFailureIsProviderFailure(t *testing.T) {
	dir, db := newTestDirectory(t, DirectoryOptions{})
	ctx := context.Background()

	account := createAccount(t, dir, "outage")
	require.NoError(t, db.Close())

	_, err := dir.GetAccountByReference(ctx, account.Href)
	require.Error(t, err)
	assert.True(t, IsProviderFailure(err))
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = dir.GetAccountByAPIKey(ctx, "KEY", "secret")
	assert.True(t, IsProviderFailure(err))
}

func TestDirectory_GetAccountByAPIKey(t *testing.T) {
	dir, _ := newTestDirectory(t, DirectoryOptions{})
	ctx := context.Background()

	account := createAccount(t, dir, "apiuser")
	id, secret, err := dir.CreateAPIKey(ctx, account.Href)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NotEmpty(t, secret)

	t.Run("matching pair", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			resolved, err := dir.GetAccountByAPIKey(ctx, id, secret)
			require.NoError(t, err)
			assert.Equal(t, account.ID, resolved.ID)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := dir.GetAccountByAPIKey(ctx, id, secret+"x")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := dir.GetAccountByAPIKey(ctx, "UNKNOWN", secret)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("empty parts", func(t *testing.T) {
		_, err := dir.GetAccountByAPIKey(ctx, "", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("account status is live even when the secret is cached", func(t *testing.T) {
		require.NoError(t, dir.SetAccountStatus(ctx, account.ID, StatusDisabled))
		resolved, err := dir.GetAccountByAPIKey(ctx, id, secret)
		require.NoError(t, err)
		assert.Equal(t, StatusDisabled, resolved.Status)
		require.NoError(t, dir.SetAccountStatus(ctx, account.ID, StatusEnabled))
	})

	t.Run("revoked key rejected even when cached", func(t *testing.T) {
		require.NoError(t, dir.RevokeAPIKey(ctx, id))
		_, err := dir.GetAccountByAPIKey(ctx, id, secret)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestDirectory_CustomData(t *testing.T) {
	dir, _ := newTestDirectory(t, DirectoryOptions{})
	ctx := context.Background()

	account := createAccount(t, dir, "custom")

	data, err := dir.GetCustomData(ctx, account.Href)
	require.NoError(t, err)
	assert.Contains(t, data, "createdAt")
	assert.Contains(t, data, "modifiedAt")
	assert.Equal(t, account.Href+"/customData", data["href"])

	updated, err := dir.SetCustomData(ctx, account.ID, map[string]any{"favoriteColor": "red"})
	require.NoError(t, err)
	assert.Equal(t, "red", updated["favoriteColor"])
	assert.Contains(t, updated, "createdAt")

	_, err = dir.SetCustomData(ctx, account.ID, map[string]any{"createdAt": "nope"})
	assert.Error(t, err)

	_, err = dir.GetCustomData(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectory_RefreshTokensRotates(t *testing.T) {
	dir, _ := newTestDirectory(t, DirectoryOptions{})
	ctx := context.Background()

	account := createAccount(t, dir, "rotator")
	pair, err := dir.IssueTokens(ctx, account.ID)
	require.NoError(t, err)

	claims, err := dir.VerifyToken(ctx, pair.AccessToken, auth.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, account.Href, claims.Subject)

	rotated, err := dir.RefreshTokens(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.True(t, rotated.RefreshExpiresAt.After(rotated.AccessExpiresAt))

	_, err = dir.RefreshTokens(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "a rotated refresh token must not be reusable")

	_, err = dir.RefreshTokens(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestDirectory_RefreshTokensRejects(t *testing.T) {
	dir, _ := newTestDirectory(t, DirectoryOptions{})
	ctx := context.Background()

	account := createAccount(t, dir, "rejected")
	pair, err := dir.IssueTokens(ctx, account.ID)
	require.NoError(t, err)

	_, err = dir.RefreshTokens(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token is not a refresh token")

	_, err = dir.RefreshTokens(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, dir.SetAccountStatus(ctx, account.ID, StatusDisabled))
	_, err = dir.RefreshTokens(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

type stubRefresher struct {
	pair *TokenPair
	err  error
	got  string
}

func (s *stubRefresher) Refresh(_ context.Context, token string) (*TokenPair, error) {
	s.got = token
	return s.pair, s.err
}

func TestDirectory_ExternalRefresher(t *testing.T) {
	stub := &stubRefresher{pair: &TokenPair{AccessToken: "a", RefreshToken: "r"}}
	dir, _ := newTestDirectory(t, DirectoryOptions{Refresher: stub})

	pair, err := dir.RefreshTokens(context.Background(), "upstream-refresh")
	require.NoError(t, err)
	assert.Equal(t, "a", pair.AccessToken)
	assert.Equal(t, "upstream-refresh", stub.got)

	_, err = dir.IssueTokens(context.Background(), "any")
	assert.Error(t, err)
}

func TestNewDirectory_Validation(t *testing.T) {
	_, err := NewDirectory(DirectoryDependencies{}, DirectoryOptions{})
	assert.Error(t, err)
}

func TestDirectory_PurgeExpiredRefreshTokens(t *testing.T) {
	dir, db := newTestDirectory(t, DirectoryOptions{})
	ctx := context.Background()

	account := createAccount(t, dir, "purger")
	_, err := dir.IssueTokens(ctx, account.ID)
	require.NoError(t, err)

	require.NoError(t, repository.NewBunRefreshTokenRepository(db).Create(ctx, &models.IssuedRefreshToken{
		JTI:       "expired-jti",
		AccountID: account.ID,
		ExpiresAt: time.Now().Add(-time.Hour).UTC(),
	}))

	n, err := dir.PurgeExpiredRefreshTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = dir.PurgeExpiredRefreshTokens(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
