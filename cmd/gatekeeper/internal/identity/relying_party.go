package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/config"
)

// RelyingPartyRefresher refreshes tokens against an external OpenID Connect
// provider's token endpoint using the refresh_token grant.
type RelyingPartyRefresher struct {
	rp         rp.RelyingParty
	refreshTTL time.Duration
	now        func() time.Time
}

var _ Refresher = (*RelyingPartyRefresher)(nil)

// NewRelyingPartyRefresher discovers the provider at cfg.Issuer and prepares
// a confidential client for refresh grants. refreshTTL is reported as the
// refresh cookie lifetime since providers do not return one.
func NewRelyingPartyRefresher(ctx context.Context, cfg *config.ExternalIdPConfig, refreshTTL time.Duration, httpClient *http.Client) (*RelyingPartyRefresher, error) {
	if cfg == nil || cfg.Issuer == "" {
		return nil, errors.New("external idp issuer is required")
	}

	var options []rp.Option
	if httpClient != nil {
		options = append(options, rp.WithHTTPClient(httpClient))
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, cfg.Issuer, cfg.ClientID, cfg.ClientSecret, "", cfg.Scopes, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	return &RelyingPartyRefresher{rp: relyingParty, refreshTTL: refreshTTL, now: time.Now}, nil
}

// Refresh implements Refresher.
func (r *RelyingPartyRefresher) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: empty refresh token", ErrInvalidToken)
	}

	tokens, err := rp.RefreshTokens[*oidc.IDTokenClaims](ctx, r.rp, refreshToken, "", "")
	if err != nil {
		return nil, classifyRefreshError(err)
	}
	if tokens == nil || tokens.Token == nil || tokens.AccessToken == "" {
		return nil, providerFailure("refresh tokens", errors.New("token endpoint returned no access token"))
	}

	pair := &TokenPair{
		AccessToken:      tokens.AccessToken,
		RefreshToken:     tokens.RefreshToken,
		AccessExpiresAt:  tokens.Expiry,
		RefreshExpiresAt: r.now().Add(r.refreshTTL),
	}
	// Providers without rotation keep the presented refresh token valid.
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// classifyRefreshError separates grant rejections, which invalidate the
// credential, from failures of the provider itself.
func classifyRefreshError(err error) error {
	var oidcErr *oidc.Error
	if errors.As(err, &oidcErr) {
		switch oidcErr.ErrorType {
		case oidc.InvalidGrant, oidc.InvalidRequest, oidc.UnauthorizedClient, oidc.InvalidClient:
			return fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}
	return providerFailure("refresh tokens", err)
}
