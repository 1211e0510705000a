package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/models"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/repository"
)

// NewAccount describes an account to create.
type NewAccount struct {
	Username  string
	Email     string
	GivenName string
	Surname   string
	Status    string
}

// CreateAccount adds an account to the directory.
func (d *Directory) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	if err := auth.ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := auth.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = StatusEnabled
	}
	if err := validateStatus(status); err != nil {
		return nil, err
	}

	account := &models.Account{
		Username:  in.Username,
		Email:     in.Email,
		GivenName: in.GivenName,
		Surname:   in.Surname,
		Status:    status,
	}
	if err := d.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	d.logger.WithField("account_id", account.ID).Info("account created")
	return d.toAccount(account), nil
}

// SetAccountStatus changes an account's status. The change applies to the
// very next resolution, including for tokens issued before it.
func (d *Directory) SetAccountStatus(ctx context.Context, ref, status string) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	account, err := d.GetAccountByReference(ctx, ref)
	if err != nil {
		return err
	}
	if err := d.accounts.SetStatus(ctx, account.ID, status); err != nil {
		return err
	}

	d.logger.WithField("account_id", account.ID).WithField("status", status).Info("account status changed")
	return nil
}

// ListAccounts returns every account in the directory.
func (d *Directory) ListAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := d.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]*Account, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, d.toAccount(&rows[i]))
	}
	return accounts, nil
}

// CreateAPIKey creates an API key for an account. The secret is returned once
// and only its bcrypt hash is stored.
func (d *Directory) CreateAPIKey(ctx context.Context, ref string) (id, secret string, err error) {
	account, err := d.GetAccountByReference(ctx, ref)
	if err != nil {
		return "", "", err
	}

	secret, err = generateSecret()
	if err != nil {
		return "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash api key secret: %w", err)
	}

	key := &models.APIKey{AccountID: account.ID, SecretHash: string(hash)}
	if err := d.apiKeys.Create(ctx, key); err != nil {
		return "", "", err
	}

	d.logger.WithField("account_id", account.ID).WithField("api_key_id", key.ID).Info("api key created")
	return key.ID, secret, nil
}

// RevokeAPIKey disables an API key.
func (d *Directory) RevokeAPIKey(ctx context.Context, id string) error {
	if err := d.apiKeys.SetStatus(ctx, id, models.APIKeyStatusDisabled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	d.logger.WithField("api_key_id", id).Info("api key revoked")
	return nil
}

// SetCustomData merges values into an account's custom data.
func (d *Directory) SetCustomData(ctx context.Context, ref string, values map[string]any) (CustomData, error) {
	account, err := d.GetAccountByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, reserved := range []string{"href", "createdAt", "modifiedAt"} {
		if _, ok := values[reserved]; ok {
			return nil, fmt.Errorf("custom data key %q is reserved", reserved)
		}
	}
	if _, err := d.customData.Upsert(ctx, account.ID, values); err != nil {
		return nil, err
	}
	return d.GetCustomData(ctx, account.Href)
}

// PurgeExpiredRefreshTokens deletes rotation records for refresh tokens that
// can no longer be presented.
func (d *Directory) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	n, err := d.refreshTokens.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired refresh tokens: %w", err)
	}
	return n, nil
}

func validateStatus(status string) error {
	switch status {
	case StatusEnabled, StatusDisabled, StatusUnverified:
		return nil
	default:
		return fmt.Errorf("unknown account status %q", status)
	}
}

func generateSecret() (string, error) {
	b := make([]byte, 30)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
