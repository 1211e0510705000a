package server

import (
	"encoding/json"
	"net/http"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/config"
)

// MeResponse is returned by GET /v1/me.
type MeResponse struct {
	Account *auth.Principal `json:"account"`
	Source  auth.Source     `json:"source"`
}

// AuthConfigResponse describes how clients obtain credentials.
type AuthConfigResponse struct {
	Mode    string   `json:"mode"` // "internal" or "external-idp"
	Issuer  string   `json:"issuer"`
	JWKSURI string   `json:"jwks_uri,omitempty"`
	Cookies []string `json:"cookies"`
	Schemes []string `json:"schemes"`
}

// HandleMe handles GET /v1/me
// Returns the principal resolved for the request.
//
// Response: 200 with the account, 401 when no principal was resolved, or
// 503 when nothing resolved and the identity provider failed along the way.
func HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		if len(auth.ProviderErrorsFromContext(ctx)) > 0 {
			http.Error(w, "identity provider unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	source := principal.Source
	if source == "" {
		source = auth.SourceExisting
	}

	writeJSON(w, http.StatusOK, MeResponse{Account: principal, Source: source})
}

// HandleJWKS handles GET /.well-known/jwks.json
// Serves the public keys tokens are verified against. Reads the key set on
// every request so rotations are visible immediately.
func HandleJWKS(keys *auth.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=60")
		writeJSON(w, http.StatusOK, keys.JWKS())
	}
}

// HandleAuthConfig handles GET /auth/config
func HandleAuthConfig(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := AuthConfigResponse{
			Cookies: []string{cfg.Cookies.SessionName, cfg.Cookies.AccessName, cfg.Cookies.RefreshName},
			Schemes: []string{"Basic", "Bearer"},
		}

		if cfg.OIDC.IsExternalIdPMode() {
			response.Mode = "external-idp"
			response.Issuer = cfg.OIDC.External.Issuer
		} else {
			response.Mode = "internal"
			response.Issuer = cfg.Tokens.Issuer
			response.JWKSURI = cfg.ServerURL + "/.well-known/jwks.json"
		}

		writeJSON(w, http.StatusOK, response)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
