package iam

import (
	"context"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
)

// Outcome is the terminal state of a resolution.
type Outcome string

const (
	OutcomeResolved   Outcome = "resolved"
	OutcomeUnresolved Outcome = "unresolved"
)

// Resolution is the result of resolving one request. It is Resolved when
// Principal is set and Unresolved otherwise.
type Resolution struct {
	Principal *auth.Principal

	// Source is the credential source that produced Principal.
	Source auth.Source

	// RefreshedTokens is the rotated token pair to persist as cookies. It is
	// set when the refresh token source resolved the principal, or when it
	// exchanged the presented token and a provider failure then stopped it;
	// in that case the resolution may be Unresolved or resolved by a later
	// source.
	RefreshedTokens *identity.TokenPair

	// ProviderErrors lists identity provider failures seen along the way.
	ProviderErrors []error

	// Err is set when resolution stopped early: the request context ended,
	// or a provider failed under the propagate policy.
	Err error
}

// Resolved reports whether a principal was resolved.
func (r *Resolution) Resolved() bool {
	return r != nil && r.Principal != nil
}

// Outcome returns the terminal state.
func (r *Resolution) Outcome() Outcome {
	if r.Resolved() {
		return OutcomeResolved
	}
	return OutcomeUnresolved
}

type resolutionContextKey struct{}

// WithResolution stores a finished resolution on the context.
func WithResolution(ctx context.Context, res *Resolution) context.Context {
	return context.WithValue(ctx, resolutionContextKey{}, res)
}

// ResolutionFromContext returns the resolution stored on the context.
func ResolutionFromContext(ctx context.Context) (*Resolution, bool) {
	res, ok := ctx.Value(resolutionContextKey{}).(*Resolution)
	return res, ok && res != nil
}
