package iam

import (
	"context"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
)

// SessionAuthenticator authenticates requests carrying a session reference
// cookie, whose value is an account href or id established by an external
// session.
//
//  1. Read the session reference credential
//  2. Return (nil, nil) if absent or empty
//  3. Resolve the account live and check its status
//
// This authenticator is stateless and thread-safe.
type SessionAuthenticator struct {
	accounts *AccountResolver
}

// NewSessionAuthenticator creates a new session authenticator.
func NewSessionAuthenticator(accounts *AccountResolver) *SessionAuthenticator {
	return &SessionAuthenticator{accounts: accounts}
}

// Source implements Authenticator.
func (a *SessionAuthenticator) Source() auth.Source { return auth.SourceSession }

// Authenticate implements Authenticator.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*auth.Principal, error) {
	cred, ok := req.Credentials.Get(auth.SourceSession)
	if !ok || cred.Malformed {
		return nil, nil
	}
	return a.accounts.ResolveReference(ctx, cred.Value, auth.SourceSession)
}
