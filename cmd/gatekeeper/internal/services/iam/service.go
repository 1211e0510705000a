package iam

import (
	"context"
	"net/http"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
)

// Service resolves the principal behind a request.
//
// Resolution never fails: every call ends Resolved or Unresolved. Identity
// provider failures are reported on the Resolution and, under the propagate
// policy, stop the chain early.
type Service interface {
	// Resolve walks the authenticator chain over already extracted
	// credentials and returns the first principal found.
	//
	// Sources are tried in priority order:
	//   1. Existing principal
	//   2. Session reference cookie
	//   3. Access token cookie
	//   4. Refresh token cookie
	//   5. Basic (API key)
	//   6. Bearer
	Resolve(ctx context.Context, creds auth.Credentials) *Resolution

	// ResolveRequest extracts credentials from r and resolves them.
	ResolveRequest(r *http.Request) *Resolution

	// CookieNames returns the credential cookie names read from requests.
	CookieNames() auth.CookieNames
}
