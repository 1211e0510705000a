package iam

import (
	"context"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
)

// ExistingPrincipalAuthenticator accepts a principal attached by an earlier
// stage of the pipeline as-is, without re-validation.
type ExistingPrincipalAuthenticator struct{}

// Source implements Authenticator.
func (ExistingPrincipalAuthenticator) Source() auth.Source { return auth.SourceExisting }

// Authenticate implements Authenticator.
func (ExistingPrincipalAuthenticator) Authenticate(_ context.Context, req *AuthRequest) (*auth.Principal, error) {
	cred, ok := req.Credentials.Get(auth.SourceExisting)
	if !ok || cred.Principal == nil {
		return nil, nil
	}
	return cred.Principal, nil
}
