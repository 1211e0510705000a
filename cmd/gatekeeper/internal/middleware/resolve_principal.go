package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/services/iam"
)

// ResolvePrincipal resolves the principal behind every request and attaches
// it to the request context.
//
// This middleware:
//  1. Returns early to next if the request was already resolved upstream
//  2. Calls resolver.ResolveRequest() which walks the credential sources
//  3. Stores the Resolution, the Principal and any provider errors in context;
//     a principal attached upstream is cleared unless it was accepted
//  4. Writes rotated token cookies whenever the refresh token source rotated them
//  5. Always continues to next handler
//
// It never writes a response body or status. Handlers that need an
// authenticated caller check auth.PrincipalFromContext themselves; provider
// outages are visible to them through auth.ProviderErrorsFromContext.
func ResolvePrincipal(resolver iam.Service, cookies auth.CookieWriter, logger *logrus.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cookies.Names == (auth.CookieNames{}) {
		cookies.Names = resolver.CookieNames()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if _, ok := iam.ResolutionFromContext(ctx); ok {
				next.ServeHTTP(w, r)
				return
			}

			res := resolver.ResolveRequest(r)

			ctx = iam.WithResolution(ctx, res)
			// Only an accepted existing principal survives; otherwise the
			// resolved principal, or nil, replaces whatever was attached.
			if res.Source != auth.SourceExisting {
				ctx = auth.WithPrincipal(ctx, res.Principal)
			}
			if len(res.ProviderErrors) > 0 {
				ctx = auth.WithProviderErrors(ctx, res.ProviderErrors)
			}

			if pair := res.RefreshedTokens; pair != nil {
				cookies.SetTokens(w, pair.AccessToken, pair.AccessExpiresAt, pair.RefreshToken, pair.RefreshExpiresAt)
				fields := logrus.Fields{
					"access_token": auth.Fingerprint(pair.AccessToken),
					"resolved":     res.Resolved(),
				}
				if res.Resolved() {
					fields["account_id"] = res.Principal.ID
				}
				logger.WithFields(fields).Debug("rotated token cookies")
			}

			if res.Err != nil {
				logger.WithError(res.Err).WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
				}).Warn("principal resolution stopped early")
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
