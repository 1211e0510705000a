// Package identity defines the identity-provider contract consumed by the
// resolution engine and the implementations that back it: the local account
// directory and an external OpenID Connect provider.
package identity

import (
	"context"
	"time"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
)

// Account statuses. Providers may report other values; only StatusEnabled is usable.
const (
	StatusEnabled    = "ENABLED"
	StatusDisabled   = "DISABLED"
	StatusUnverified = "UNVERIFIED"
)

// Account is a provider account as seen at lookup time.
type Account struct {
	Href       string
	ID         string
	Username   string
	GivenName  string
	Surname    string
	Email      string
	Status     string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// IsEnabled reports whether the account may authenticate.
func (a *Account) IsEnabled() bool {
	return a != nil && a.Status == StatusEnabled
}

// CustomData is the provider-managed extended attribute bundle of an account.
// It always carries "createdAt" and "modifiedAt".
type CustomData map[string]any

// TokenPair is a newly issued access/refresh token pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Provider is the identity-provider service consumed by the resolution engine.
//
// Every method distinguishes a rejection (ErrNotFound, ErrInvalidCredentials,
// ErrInvalidToken, ErrAccountDisabled) from a failure of the provider itself,
// which is returned as a *ProviderError.
type Provider interface {
	// GetAccountByReference fetches an account by href or id. The account is
	// returned whatever its status; callers decide whether it is usable.
	GetAccountByReference(ctx context.Context, ref string) (*Account, error)

	// GetAccountByAPIKey fetches the account owning an enabled API key whose
	// secret matches.
	GetAccountByAPIKey(ctx context.Context, id, secret string) (*Account, error)

	// GetCustomData fetches the extended attribute bundle of an account.
	GetCustomData(ctx context.Context, ref string) (CustomData, error)

	// VerifyToken checks a token's signature, expiry, issuer and kind.
	VerifyToken(ctx context.Context, raw string, kind auth.TokenKind) (*auth.Claims, error)

	// RefreshTokens exchanges a refresh token for a new token pair.
	RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error)
}
