package iam

import (
	"context"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
)

// JWTAuthenticator authenticates requests carrying an access token, either
// in the access token cookie or in a Bearer Authorization header.
//
//  1. Read the token from the configured source
//  2. Return (nil, nil) if absent or malformed
//  3. Verify signature, expiry, issuer and kind (access)
//  4. Resolve the subject account live and check its status
//
// A token that verifies does not by itself authenticate: the account behind
// it must still be ENABLED at the provider.
type JWTAuthenticator struct {
	source   auth.Source
	provider identity.Provider
	accounts *AccountResolver
}

// NewAccessTokenAuthenticator creates an authenticator for the access token cookie.
func NewAccessTokenAuthenticator(provider identity.Provider, accounts *AccountResolver) *JWTAuthenticator {
	return &JWTAuthenticator{source: auth.SourceAccessToken, provider: provider, accounts: accounts}
}

// NewBearerAuthenticator creates an authenticator for Bearer Authorization headers.
func NewBearerAuthenticator(provider identity.Provider, accounts *AccountResolver) *JWTAuthenticator {
	return &JWTAuthenticator{source: auth.SourceBearer, provider: provider, accounts: accounts}
}

// Source implements Authenticator.
func (a *JWTAuthenticator) Source() auth.Source { return a.source }

// Authenticate implements Authenticator.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*auth.Principal, error) {
	cred, ok := req.Credentials.Get(a.source)
	if !ok || cred.Malformed {
		return nil, nil
	}

	claims, err := a.provider.VerifyToken(ctx, cred.Value, auth.TokenKindAccess)
	if err != nil {
		return nil, failure(err)
	}

	return a.accounts.ResolveReference(ctx, claims.Subject, a.source)
}
