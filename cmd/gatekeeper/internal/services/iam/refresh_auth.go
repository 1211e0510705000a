package iam

import (
	"context"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
)

// RefreshAuthenticator authenticates requests carrying a refresh token cookie
// by exchanging it for a new token pair.
//
//  1. Read the refresh token credential
//  2. Return (nil, nil) if absent or malformed
//  3. Verify it is a refresh token and exchange it with the provider
//  4. Resolve the account from the new access token
//  5. Hand the new pair back through AuthRequest.RefreshedTokens
//
// Exchanging consumes the presented refresh token. The new pair is handed
// back when the account resolved, and also when a provider failure stopped
// resolution after the exchange, so the client is not left holding a spent
// cookie. A rejected account gets nothing back.
type RefreshAuthenticator struct {
	refresher *TokenRefresher
	accounts  *AccountResolver
}

// NewRefreshAuthenticator creates a new refresh token authenticator.
func NewRefreshAuthenticator(refresher *TokenRefresher, accounts *AccountResolver) *RefreshAuthenticator {
	return &RefreshAuthenticator{refresher: refresher, accounts: accounts}
}

// Source implements Authenticator.
func (a *RefreshAuthenticator) Source() auth.Source { return auth.SourceRefreshToken }

// Authenticate implements Authenticator.
func (a *RefreshAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*auth.Principal, error) {
	cred, ok := req.Credentials.Get(auth.SourceRefreshToken)
	if !ok || cred.Malformed {
		return nil, nil
	}

	pair, claims, err := a.refresher.Refresh(ctx, cred.Value)
	if err != nil {
		req.RefreshedTokens = pair
		return nil, err
	}
	if pair == nil {
		return nil, nil
	}

	principal, err := a.accounts.ResolveReference(ctx, claims.Subject, auth.SourceRefreshToken)
	if err != nil {
		req.RefreshedTokens = pair
		return nil, err
	}
	if principal == nil {
		return nil, nil
	}

	req.RefreshedTokens = pair
	return principal, nil
}
