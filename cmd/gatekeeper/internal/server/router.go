package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/config"
	gkmiddleware "github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/middleware"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/services/iam"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/telemetry"
)

// RouterOptions controls the construction of the gatekeeper HTTP router.
// Resolver is required; the remaining fields are optional.
type RouterOptions struct {
	Resolver      iam.Service
	Keys          *auth.KeySet
	Cfg           *config.Config
	Cookies       auth.CookieWriter
	Logger        *logrus.Logger
	ServerMetrics *telemetry.ServerMetrics
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy. Credentials
// are allowed so browser clients can send the credential cookies.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy,
// principal resolution and the gatekeeper handlers mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	if opts.ServerMetrics != nil {
		r.Use(RequestMetrics(opts.ServerMetrics))
	}

	// Custom middleware runs before resolution so it can attach an existing
	// principal.
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Use(gkmiddleware.ResolvePrincipal(opts.Resolver, opts.Cookies, opts.Logger))

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	if opts.Keys != nil {
		r.Get("/.well-known/jwks.json", HandleJWKS(opts.Keys))
	}
	if opts.Cfg != nil {
		r.Get("/auth/config", HandleAuthConfig(opts.Cfg))
	}

	r.Get("/v1/me", HandleMe)

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}

// NewH2CHandler wraps the router with an h2c server to provide HTTP/2 over
// cleartext.
func NewH2CHandler(opts RouterOptions) http.Handler {
	return h2c.NewHandler(NewRouter(opts), &http2.Server{})
}
