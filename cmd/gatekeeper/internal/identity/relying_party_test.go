package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/config"
)

// newFakeIdP serves discovery and a token endpoint that accepts a single
// refresh token.
func newFakeIdP(t *testing.T, validRefresh string, status int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 server.URL,
			"authorization_endpoint": server.URL + "/authorize",
			"token_endpoint":         server.URL + "/token",
			"jwks_uri":               server.URL + "/keys",
			"userinfo_endpoint":      server.URL + "/userinfo",
		})
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")

		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "server_error"})
			return
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != validRefresh {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant", "error_description": "bad refresh token"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"token_type":    "Bearer",
			"refresh_token": "new-refresh",
			"expires_in":    300,
		})
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestRefresher(t *testing.T, server *httptest.Server) *RelyingPartyRefresher {
	t.Helper()
	refresher, err := NewRelyingPartyRefresher(context.Background(), &config.ExternalIdPConfig{
		Issuer:       server.URL,
		ClientID:     "gatekeeper",
		ClientSecret: "secret",
		Scopes:       []string{"openid", "offline_access"},
	}, time.Hour, server.Client())
	require.NoError(t, err)
	return refresher
}

func TestRelyingPartyRefresher_Refresh(t *testing.T) {
	server := newFakeIdP(t, "upstream-refresh", http.StatusOK)
	refresher := newTestRefresher(t, server)

	pair, err := refresher.Refresh(context.Background(), "upstream-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", pair.AccessToken)
	assert.Equal(t, "new-refresh", pair.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), pair.AccessExpiresAt, 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(time.Hour), pair.RefreshExpiresAt, 5*time.Second)
}

func TestRelyingPartyRefresher_RejectedGrantIsInvalidToken(t *testing.T) {
	server := newFakeIdP(t, "upstream-refresh", http.StatusOK)
	refresher := newTestRefresher(t, server)

	_, err := refresher.Refresh(context.Background(), "stolen")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.False(t, IsProviderFailure(err))

	_, err = refresher.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRelyingPartyRefresher_ServerErrorIsProviderFailure(t *testing.T) {
	server := newFakeIdP(t, "upstream-refresh", http.StatusServiceUnavailable)
	refresher := newTestRefresher(t, server)

	_, err := refresher.Refresh(context.Background(), "upstream-refresh")
	require.Error(t, err)
	assert.True(t, IsProviderFailure(err))
}

func TestClassifyRefreshError(t *testing.T) {
	assert.ErrorIs(t, classifyRefreshError(&oidc.Error{ErrorType: oidc.InvalidGrant}), ErrInvalidToken)
	assert.True(t, IsProviderFailure(classifyRefreshError(&oidc.Error{ErrorType: oidc.ServerError})))
	assert.True(t, IsProviderFailure(classifyRefreshError(errors.New("connection refused"))))
}
