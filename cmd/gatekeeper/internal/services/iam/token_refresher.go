package iam

import (
	"context"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
)

// TokenRefresher exchanges a refresh token for a new token pair and verifies
// the new access token.
type TokenRefresher struct {
	provider identity.Provider
}

// NewTokenRefresher creates a token refresher.
func NewTokenRefresher(provider identity.Provider) *TokenRefresher {
	return &TokenRefresher{provider: provider}
}

// Refresh returns the new pair and the verified claims of its access token.
// An invalid refresh token, a rejected exchange or an unverifiable new
// access token all yield (nil, nil, nil). Once the exchange succeeded the
// presented token is spent, so a provider failure verifying the new access
// token still returns the pair alongside the error.
func (t *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (*identity.TokenPair, *auth.Claims, error) {
	// Step 1: Verify the presented token is a refresh token
	if _, err := t.provider.VerifyToken(ctx, refreshToken, auth.TokenKindRefresh); err != nil {
		return nil, nil, failure(err)
	}

	// Step 2: Exchange it with the provider
	pair, err := t.provider.RefreshTokens(ctx, refreshToken)
	if err != nil {
		return nil, nil, failure(err)
	}
	if pair == nil || pair.AccessToken == "" {
		return nil, nil, nil
	}

	// Step 3: The account is resolved from the new access token
	claims, err := t.provider.VerifyToken(ctx, pair.AccessToken, auth.TokenKindAccess)
	if err != nil {
		if err := failure(err); err != nil {
			return pair, nil, err
		}
		return nil, nil, nil
	}

	return pair, claims, nil
}
