package iam

import (
	"context"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
)

// Authenticator resolves a principal from one credential source.
//
// Implementations:
//   - ExistingPrincipalAuthenticator: principal attached by an earlier stage
//   - SessionAuthenticator: session reference cookie
//   - JWTAuthenticator: access token cookie or Bearer header
//   - RefreshAuthenticator: refresh token cookie
//   - BasicAuthenticator: API key id/secret via HTTP Basic
//
// Return values:
//   - (principal, nil): Authentication successful
//   - (nil, nil): Credential absent, malformed, invalid or account unusable (try next authenticator)
//   - (nil, error): The identity provider failed; the credential was not judged
type Authenticator interface {
	// Source names the credential source this authenticator consumes.
	Source() auth.Source

	// Authenticate validates the credential and returns a Principal.
	Authenticate(ctx context.Context, req *AuthRequest) (*auth.Principal, error)
}

// AuthRequest carries the credentials of one request through the chain.
type AuthRequest struct {
	// Credentials holds every candidate present on the request.
	Credentials auth.Credentials

	// RefreshedTokens is set by RefreshAuthenticator when it succeeded with a
	// rotated token pair that must be written back as cookies.
	RefreshedTokens *identity.TokenPair
}
