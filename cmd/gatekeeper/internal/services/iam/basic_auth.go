package iam

import (
	"context"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
)

// BasicAuthenticator authenticates requests carrying API key credentials in
// an HTTP Basic Authorization header (id as username, secret as password).
type BasicAuthenticator struct {
	accounts *AccountResolver
}

// NewBasicAuthenticator creates a new API key authenticator.
func NewBasicAuthenticator(accounts *AccountResolver) *BasicAuthenticator {
	return &BasicAuthenticator{accounts: accounts}
}

// Source implements Authenticator.
func (a *BasicAuthenticator) Source() auth.Source { return auth.SourceBasic }

// Authenticate implements Authenticator.
func (a *BasicAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*auth.Principal, error) {
	cred, ok := req.Credentials.Get(auth.SourceBasic)
	if !ok || cred.Malformed {
		return nil, nil
	}
	return a.accounts.ResolveAPIKey(ctx, cred.ID, cred.Secret)
}
