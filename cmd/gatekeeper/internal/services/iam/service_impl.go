package iam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/config"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/telemetry"
)

const tracerName = "gatekeeper/services/iam"

// ErrProviderUnavailable wraps the provider failure that stopped resolution
// under the propagate policy.
var ErrProviderUnavailable = errors.New("identity provider unavailable")

// Options configures the resolver.
type Options struct {
	// Sources toggles each credential source. A disabled source is skipped
	// as if its credential were absent.
	Sources config.SourcesConfig

	// ExpandCustomData populates Principal.CustomData.
	ExpandCustomData bool

	// ProviderFailure is config.ProviderFailureFallthrough (default) or
	// config.ProviderFailurePropagate.
	ProviderFailure string

	// AccountFilter is an optional go-bexpr expression over the account.
	AccountFilter string

	Cookies auth.CookieNames
	Logger  *logrus.Logger
	Metrics *telemetry.ResolutionMetrics
}

// AllSources enables every credential source.
func AllSources() config.SourcesConfig {
	return config.SourcesConfig{
		Existing:     true,
		Session:      true,
		AccessToken:  true,
		RefreshToken: true,
		Basic:        true,
		Bearer:       true,
	}
}

// OptionsFromConfig builds resolver options from application configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Sources:          cfg.Resolution.Sources,
		ExpandCustomData: cfg.Resolution.ExpandCustomData,
		ProviderFailure:  cfg.Resolution.ProviderFailure,
		AccountFilter:    cfg.Resolution.AccountFilter,
		Cookies: auth.CookieNames{
			Session: cfg.Cookies.SessionName,
			Access:  cfg.Cookies.AccessName,
			Refresh: cfg.Cookies.RefreshName,
		},
	}
}

// resolver implements the Service interface.
type resolver struct {
	authenticators []Authenticator
	enabled        map[auth.Source]bool
	propagate      bool
	cookies        auth.CookieNames
	logger         *logrus.Logger
	metrics        *telemetry.ResolutionMetrics
}

// NewResolver creates a resolver backed by provider.
func NewResolver(provider identity.Provider, opts Options) (Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("identity provider is required")
	}

	switch opts.ProviderFailure {
	case "", config.ProviderFailureFallthrough:
	case config.ProviderFailurePropagate:
	default:
		return nil, fmt.Errorf("unknown provider failure policy %q", opts.ProviderFailure)
	}

	filter, err := NewAccountFilter(opts.AccountFilter)
	if err != nil {
		return nil, err
	}

	cookies := opts.Cookies
	if cookies == (auth.CookieNames{}) {
		cookies = auth.DefaultCookieNames()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	accounts := NewAccountResolver(provider, opts.ExpandCustomData, filter)

	return &resolver{
		authenticators: initializeAuthenticators(provider, accounts),
		enabled: map[auth.Source]bool{
			auth.SourceExisting:     opts.Sources.Existing,
			auth.SourceSession:      opts.Sources.Session,
			auth.SourceAccessToken:  opts.Sources.AccessToken,
			auth.SourceRefreshToken: opts.Sources.RefreshToken,
			auth.SourceBasic:        opts.Sources.Basic,
			auth.SourceBearer:       opts.Sources.Bearer,
		},
		propagate: opts.ProviderFailure == config.ProviderFailurePropagate,
		cookies:   cookies,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// initializeAuthenticators creates the chain in priority order.
func initializeAuthenticators(provider identity.Provider, accounts *AccountResolver) []Authenticator {
	return []Authenticator{
		ExistingPrincipalAuthenticator{},
		NewSessionAuthenticator(accounts),
		NewAccessTokenAuthenticator(provider, accounts),
		NewRefreshAuthenticator(NewTokenRefresher(provider), accounts),
		NewBasicAuthenticator(accounts),
		NewBearerAuthenticator(provider, accounts),
	}
}

func (s *resolver) CookieNames() auth.CookieNames {
	return s.cookies
}

func (s *resolver) ResolveRequest(r *http.Request) *Resolution {
	return s.Resolve(r.Context(), auth.ExtractCredentials(r, s.cookies))
}

// Resolve tries the authenticators in order.
//
// Algorithm:
//   - Skip sources that are disabled or have no credential on the request
//   - If authenticator returns (nil, nil): credential rejected, try next
//   - If authenticator returns (nil, error): provider failure, record it; try next
//     under fallthrough, stop under propagate
//   - If authenticator returns (principal, nil): success, stop
//   - If the request context ends: stop, Unresolved
//   - A rotated token pair is reported whenever the refresh source produced one
func (s *resolver) Resolve(ctx context.Context, creds auth.Credentials) *Resolution {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.Resolve",
		attribute.Int("credential_count", len(creds)),
	)
	defer span.End()

	res := &Resolution{}
	req := &AuthRequest{Credentials: creds}

	for _, authenticator := range s.authenticators {
		source := authenticator.Source()
		if !s.enabled[source] || !creds.Has(source) {
			continue
		}

		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}

		principal, err := authenticator.Authenticate(ctx, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.Err = ctxErr
				break
			}

			res.ProviderErrors = append(res.ProviderErrors, err)
			s.metrics.RecordProviderFailure(ctx, string(source))
			telemetry.AddEvent(span, "resolution.provider_failure",
				attribute.String(telemetry.AttrResolutionSource, string(source)),
				attribute.String("error", err.Error()),
			)
			s.logger.WithError(err).WithField("source", source).Warn("identity provider failure during resolution")

			if s.propagate {
				res.Err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
				break
			}
			continue
		}

		if principal == nil {
			s.logger.WithField("source", source).Debug("credential rejected")
			continue
		}

		res.Principal = principal
		res.Source = source
		break
	}

	// Set by the refresh source on success, or after it spent the presented
	// token and then hit a provider failure.
	res.RefreshedTokens = req.RefreshedTokens

	s.finish(ctx, span, res, start)
	return res
}

func (s *resolver) finish(ctx context.Context, span trace.Span, res *Resolution, start time.Time) {
	outcome := res.Outcome()
	source := string(res.Source)

	span.SetAttributes(
		attribute.String(telemetry.AttrResolutionOutcome, string(outcome)),
		attribute.Int("provider_error_count", len(res.ProviderErrors)),
	)

	fields := logrus.Fields{"outcome": outcome}
	if res.Resolved() {
		span.SetAttributes(
			attribute.String(telemetry.AttrResolutionSource, source),
			attribute.String(telemetry.AttrAccountID, res.Principal.ID),
			attribute.String(telemetry.AttrAccountHref, res.Principal.Href),
		)
		fields["source"] = source
		fields["account_id"] = res.Principal.ID
	}
	if res.Err != nil {
		telemetry.RecordError(span, res.Err)
		fields["error"] = res.Err.Error()
	}
	s.logger.WithFields(fields).Debug("principal resolution finished")

	s.metrics.RecordResolution(ctx, source, string(outcome), float64(time.Since(start).Microseconds())/1000)
}
