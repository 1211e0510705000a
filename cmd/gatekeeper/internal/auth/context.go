package auth

import (
	"context"
	"time"
)

// Source identifies the credential channel a principal was resolved from.
type Source string

const (
	SourceExisting     Source = "existing"
	SourceSession      Source = "session"
	SourceAccessToken  Source = "access_token"
	SourceRefreshToken Source = "refresh_token"
	SourceBasic        Source = "basic"
	SourceBearer       Source = "bearer"
)

// Sources lists every credential source in resolution precedence order.
var Sources = []Source{
	SourceExisting,
	SourceSession,
	SourceAccessToken,
	SourceRefreshToken,
	SourceBasic,
	SourceBearer,
}

// Principal captures the resolved account propagated through the request context.
type Principal struct {
	// Href is the provider's immutable account reference.
	Href string `json:"href"`
	// ID is the account identifier (the last path segment of Href).
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	GivenName  string    `json:"givenName"`
	Surname    string    `json:"surname"`
	Email      string    `json:"email"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	// CustomData is populated only when custom data expansion is enabled.
	CustomData map[string]any `json:"customData,omitempty"`
	// Source records which credential produced this principal.
	Source Source `json:"-"`
}

type principalContextKey struct{}

// WithPrincipal stores the principal on the context for downstream consumers.
// A principal attached this way is accepted as-is by later resolution.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext retrieves the principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	return principal, ok && principal != nil
}

type providerErrorsContextKey struct{}

// WithProviderErrors stores identity-provider failures seen while resolving
// the request.
func WithProviderErrors(ctx context.Context, errs []error) context.Context {
	copied := append([]error(nil), errs...)
	return context.WithValue(ctx, providerErrorsContextKey{}, copied)
}

// ProviderErrorsFromContext returns identity-provider failures seen while
// resolving the request. Handlers can use it to tell "no credential" apart
// from "provider down".
func ProviderErrorsFromContext(ctx context.Context) []error {
	errs, ok := ctx.Value(providerErrorsContextKey{}).([]error)
	if !ok {
		return nil
	}
	return append([]error(nil), errs...)
}
