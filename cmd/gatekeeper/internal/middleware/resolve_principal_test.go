package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/config"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity/identitytest"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/services/iam"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setup(t *testing.T, policy string) (*identitytest.Provider, func(http.Handler) http.Handler) {
	t.Helper()
	return setupWith(t, iam.Options{Sources: iam.AllSources(), ProviderFailure: policy})
}

func setupWith(t *testing.T, opts iam.Options) (*identitytest.Provider, func(http.Handler) http.Handler) {
	t.Helper()

	provider, err := identitytest.New()
	require.NoError(t, err)
	provider.AddAccount(identity.Account{ID: "alice", Username: "alice", Email: "alice@example.com"})

	opts.Logger = quietLogger()
	resolver, err := iam.NewResolver(provider, opts)
	require.NoError(t, err)

	return provider, ResolvePrincipal(resolver, auth.CookieWriter{Secure: true}, quietLogger())
}

// recorder captures what the downstream handler saw.
type recorder struct {
	called     int
	principal  *auth.Principal
	resolution *iam.Resolution
	errs       []error
}

func (rec *recorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.called++
		rec.principal, _ = auth.PrincipalFromContext(r.Context())
		rec.resolution, _ = iam.ResolutionFromContext(r.Context())
		rec.errs = auth.ProviderErrorsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestResolvePrincipal_Unresolved(t *testing.T) {
	_, mw := setup(t, config.ProviderFailureFallthrough)
	rec := &recorder{}

	w := httptest.NewRecorder()
	mw(rec.handler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, rec.called)
	assert.Nil(t, rec.principal)
	require.NotNil(t, rec.resolution)
	assert.False(t, rec.resolution.Resolved())
	assert.Empty(t, w.Result().Cookies())
}

func TestResolvePrincipal_AttachesPrincipal(t *testing.T) {
	provider, mw := setup(t, config.ProviderFailureFallthrough)
	token, err := provider.IssueAccessToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := &recorder{}
	mw(rec.handler()).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, rec.principal)
	assert.Equal(t, "alice", rec.principal.ID)
	assert.Equal(t, auth.SourceBearer, rec.principal.Source)
}

func TestResolvePrincipal_RefreshWritesCookies(t *testing.T) {
	provider, mw := setup(t, config.ProviderFailureFallthrough)
	refresh, err := provider.IssueRefreshToken("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "stale"})
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh})

	rec := &recorder{}
	w := httptest.NewRecorder()
	mw(rec.handler()).ServeHTTP(w, req)

	require.NotNil(t, rec.principal)
	assert.Equal(t, "alice", rec.principal.ID)

	cookies := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, "access_token")
	require.Contains(t, cookies, "refresh_token")
	assert.Equal(t, rec.resolution.RefreshedTokens.AccessToken, cookies["access_token"].Value)
	assert.Equal(t, rec.resolution.RefreshedTokens.RefreshToken, cookies["refresh_token"].Value)
	assert.NotEqual(t, refresh, cookies["refresh_token"].Value)
	for _, c := range cookies {
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	}
}

func TestResolvePrincipal_Memoised(t *testing.T) {
	provider, mw := setup(t, config.ProviderFailureFallthrough)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "idSiteSession", Value: identitytest.BaseURL + "alice"})

	rec := &recorder{}
	mw(mw(rec.handler())).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1, rec.called)
	require.NotNil(t, rec.principal)
	assert.Equal(t, 1, provider.Calls(identitytest.OpGetAccount))
}

func TestResolvePrincipal_ExistingPrincipalUntouched(t *testing.T) {
	provider, mw := setup(t, config.ProviderFailureFallthrough)
	existing := &auth.Principal{ID: "upstream"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "idSiteSession", Value: identitytest.BaseURL + "alice"})
	req = req.WithContext(auth.WithPrincipal(req.Context(), existing))

	rec := &recorder{}
	mw(rec.handler()).ServeHTTP(httptest.NewRecorder(), req)

	assert.Same(t, existing, rec.principal)
	assert.Equal(t, 0, provider.TotalCalls())
}

func TestResolvePrincipal_ProviderFailureAlwaysCallsNext(t *testing.T) {
	for _, policy := range []string{config.ProviderFailureFallthrough, config.ProviderFailurePropagate} {
		t.Run(policy, func(t *testing.T) {
			provider, mw := setup(t, policy)
			provider.FailWith(errors.New("upstream 503"))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: "idSiteSession", Value: identitytest.BaseURL + "alice"})

			rec := &recorder{}
			w := httptest.NewRecorder()
			mw(rec.handler()).ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, 1, rec.called)
			assert.Nil(t, rec.principal)
			require.Len(t, rec.errs, 1)
			assert.True(t, identity.IsProviderFailure(rec.errs[0]))
		})
	}
}

func TestResolvePrincipal_DisabledExistingSourceClearsPrincipal(t *testing.T) {
	sources := iam.AllSources()
	sources.Existing = false

	t.Run("nothing else resolves", func(t *testing.T) {
		_, mw := setupWith(t, iam.Options{Sources: sources})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{ID: "upstream"}))

		rec := &recorder{}
		mw(rec.handler()).ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, rec.resolution)
		assert.False(t, rec.resolution.Resolved())
		assert.Nil(t, rec.principal)
	})

	t.Run("a credential on the request wins", func(t *testing.T) {
		_, mw := setupWith(t, iam.Options{Sources: sources})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "idSiteSession", Value: identitytest.BaseURL + "alice"})
		req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{ID: "upstream"}))

		rec := &recorder{}
		mw(rec.handler()).ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, rec.principal)
		assert.Equal(t, "alice", rec.principal.ID)
		assert.Equal(t, auth.SourceSession, rec.resolution.Source)
	})
}

func TestResolvePrincipal_ProviderOutageAfterRefreshStillWritesCookies(t *testing.T) {
	provider, mw := setup(t, config.ProviderFailureFallthrough)
	refresh, err := provider.IssueRefreshToken("alice")
	require.NoError(t, err)
	provider.FailOn(identitytest.OpGetAccount, errors.New("upstream 503"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh})

	rec := &recorder{}
	w := httptest.NewRecorder()
	mw(rec.handler()).ServeHTTP(w, req)

	assert.Equal(t, 1, rec.called)
	assert.Nil(t, rec.principal)
	require.Len(t, rec.errs, 1)

	cookies := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, "refresh_token")
	assert.NotEqual(t, refresh, cookies["refresh_token"].Value)
	assert.Equal(t, rec.resolution.RefreshedTokens.RefreshToken, cookies["refresh_token"].Value)
}
