package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider failure policies for identity-provider transport errors.
const (
	// ProviderFailureFallthrough treats an unreachable provider like an invalid
	// credential for that source and moves on to the next source.
	ProviderFailureFallthrough = "fallthrough"

	// ProviderFailurePropagate stops resolution at the first provider failure
	// and reports it to downstream handlers.
	ProviderFailurePropagate = "propagate"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string `mapstructure:"database_url"`

	// Maximum database connection pool size
	MaxDBConnections int `mapstructure:"max_db_connections"`

	// Server bind address (host:port)
	ServerAddr string `mapstructure:"server_addr"`

	// Base URL used to build account hrefs
	ServerURL string `mapstructure:"server_url"`

	// Enable debug logging
	Debug bool `mapstructure:"debug"`

	// LogFormat selects the logrus formatter: "text" or "json"
	LogFormat string `mapstructure:"log_format"`

	Resolution    ResolutionConfig    `mapstructure:"resolution"`
	Cookies       CookieConfig        `mapstructure:"cookies"`
	Tokens        TokenConfig         `mapstructure:"tokens"`
	OIDC          OIDCConfig          `mapstructure:"oidc"`
	APIKeys       APIKeyConfig        `mapstructure:"apikeys"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ResolutionConfig controls the principal resolution chain.
type ResolutionConfig struct {
	// ExpandCustomData populates the extended-attribute bundle on every
	// resolved principal.
	ExpandCustomData bool `mapstructure:"expand_custom_data"`

	// Sources enables or disables individual credential sources. A disabled
	// source is skipped as if its credential were absent.
	Sources SourcesConfig `mapstructure:"sources"`

	// ProviderFailure is either "fallthrough" or "propagate".
	ProviderFailure string `mapstructure:"provider_failure"`

	// AccountFilter is an optional go-bexpr expression evaluated against every
	// resolved account. Accounts that do not match are treated as unusable.
	AccountFilter string `mapstructure:"account_filter"`
}

// SourcesConfig toggles each credential source.
type SourcesConfig struct {
	Existing     bool `mapstructure:"existing"`
	Session      bool `mapstructure:"session"`
	AccessToken  bool `mapstructure:"access_token"`
	RefreshToken bool `mapstructure:"refresh_token"`
	Basic        bool `mapstructure:"basic"`
	Bearer       bool `mapstructure:"bearer"`
}

// CookieConfig names the credential cookies and the attributes used when
// rewriting them after a refresh.
type CookieConfig struct {
	SessionName string `mapstructure:"session_name"`
	AccessName  string `mapstructure:"access_name"`
	RefreshName string `mapstructure:"refresh_name"`
	Secure      bool   `mapstructure:"secure"`
	Domain      string `mapstructure:"domain"`
	Path        string `mapstructure:"path"`
}

// TokenConfig holds settings for the locally issued access/refresh tokens.
type TokenConfig struct {
	Issuer             string        `mapstructure:"issuer"`
	Audience           string        `mapstructure:"audience"`
	AccessTTL          time.Duration `mapstructure:"access_ttl"`
	RefreshTTL         time.Duration `mapstructure:"refresh_ttl"`
	SigningKeyPath     string        `mapstructure:"signing_key_path"`
	KeyRefreshInterval time.Duration `mapstructure:"key_refresh_interval"`
}

// OIDCConfig holds OIDC configuration.
//
// When External is set the service runs in external IdP mode: tokens are
// verified against the external issuer's JWKS and refreshed through its token
// endpoint. Otherwise tokens are issued and verified locally.
type OIDCConfig struct {
	External *ExternalIdPConfig `mapstructure:"external"`
}

// ExternalIdPConfig holds configuration for external identity providers (Keycloak, Entra ID, Okta, etc.)
type ExternalIdPConfig struct {
	Issuer       string   `mapstructure:"issuer"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
}

// APIKeyConfig controls the API key verification cache.
type APIKeyConfig struct {
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// ObservabilityConfig holds OpenTelemetry exporter settings.
type ObservabilityConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
}

// IsExternalIdPMode returns true if tokens come from an external IdP.
func (c *OIDCConfig) IsExternalIdPMode() bool {
	return c.External != nil && c.External.Issuer != ""
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "file:gatekeeper.db?cache=shared")
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "text")

	v.SetDefault("resolution.expand_custom_data", false)
	v.SetDefault("resolution.provider_failure", ProviderFailureFallthrough)
	v.SetDefault("resolution.account_filter", "")
	for _, source := range []string{"existing", "session", "access_token", "refresh_token", "basic", "bearer"} {
		v.SetDefault("resolution.sources."+source, true)
	}

	v.SetDefault("cookies.session_name", "idSiteSession")
	v.SetDefault("cookies.access_name", "access_token")
	v.SetDefault("cookies.refresh_name", "refresh_token")
	v.SetDefault("cookies.secure", false)
	v.SetDefault("cookies.domain", "")
	v.SetDefault("cookies.path", "/")

	v.SetDefault("tokens.issuer", "http://localhost:8080")
	v.SetDefault("tokens.audience", "gatekeeper")
	v.SetDefault("tokens.access_ttl", time.Hour)
	v.SetDefault("tokens.refresh_ttl", 720*time.Hour)
	v.SetDefault("tokens.signing_key_path", "")
	v.SetDefault("tokens.key_refresh_interval", 5*time.Minute)

	v.SetDefault("oidc.external.scopes", []string{"openid", "profile", "email", "offline_access"})

	v.SetDefault("apikeys.cache_size", 1024)
	v.SetDefault("apikeys.cache_ttl", 5*time.Minute)

	v.SetDefault("observability.service_name", "gatekeeper")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_insecure", false)
}

// Load reads configuration from the global viper instance: config file (if
// one was read), GATEKEEPER_ prefixed environment variables and bound flags.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("GATEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	// AutomaticEnv only applies to keys viper already knows about; external
	// IdP settings have no defaults so bind them explicitly.
	for _, key := range []string{"oidc.external.issuer", "oidc.external.client_id", "oidc.external.client_secret"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	if cfg.OIDC.External != nil && cfg.OIDC.External.Issuer == "" {
		cfg.OIDC.External = nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}

	switch c.Resolution.ProviderFailure {
	case ProviderFailureFallthrough, ProviderFailurePropagate:
	default:
		return fmt.Errorf("resolution.provider_failure must be %q or %q, got %q",
			ProviderFailureFallthrough, ProviderFailurePropagate, c.Resolution.ProviderFailure)
	}

	if c.OIDC.IsExternalIdPMode() {
		if c.OIDC.External.ClientID == "" {
			return fmt.Errorf("oidc.external.client_id is required for External IdP mode")
		}
	} else if c.Tokens.Issuer == "" {
		return fmt.Errorf("tokens.issuer is required")
	}

	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		return fmt.Errorf("tokens.access_ttl and tokens.refresh_ttl must be positive")
	}

	for name, value := range map[string]string{
		"cookies.session_name": c.Cookies.SessionName,
		"cookies.access_name":  c.Cookies.AccessName,
		"cookies.refresh_name": c.Cookies.RefreshName,
	} {
		if value == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	return nil
}
