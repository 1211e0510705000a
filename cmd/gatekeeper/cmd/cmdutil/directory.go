package cmdutil

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/config"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/db/bunx"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/repository"
)

// DirectoryBundle bundles the directory with its underlying DB connection and
// key material so callers can reuse them.
type DirectoryBundle struct {
	Directory *identity.Directory
	DB        *bun.DB

	// Keys is nil in external IdP mode.
	Keys *auth.KeySet
}

// Close releases the underlying database connection.
func (b *DirectoryBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	bunx.Close(b.DB)
}

// Load reads configuration and builds the logger for admin commands.
func Load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, NewLogger(cfg), nil
}

// NewLogger builds a logrus logger from the debug and log_format settings.
func NewLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// NewDirectoryBundle centralizes directory construction for the server and
// CLI commands. It connects to the database, prepares key material and token
// verification for the configured mode, and returns a ready-to-use directory.
//
// Internal mode signs and verifies tokens with a local key set; when
// tokens.signing_key_path is empty the key is ephemeral. External IdP mode
// verifies tokens against the issuer's JWKS and refreshes them through its
// token endpoint.
func NewDirectoryBundle(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*DirectoryBundle, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxOpenConns: cfg.MaxDBConnections})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	opts := identity.DirectoryOptions{
		ServerURL:       cfg.ServerURL,
		APIKeyCacheSize: cfg.APIKeys.CacheSize,
		APIKeyCacheTTL:  cfg.APIKeys.CacheTTL,
		Logger:          logger,
	}

	var keys *auth.KeySet
	if cfg.OIDC.IsExternalIdPMode() {
		validator, err := auth.NewOIDCValidator(cfg.OIDC.External.Issuer, cfg.OIDC.External.ClientID)
		if err != nil {
			bunx.Close(db)
			return nil, fmt.Errorf("failed to create token validator: %w", err)
		}
		refresher, err := identity.NewRelyingPartyRefresher(ctx, cfg.OIDC.External, cfg.Tokens.RefreshTTL, nil)
		if err != nil {
			bunx.Close(db)
			return nil, err
		}
		opts.Validator = validator
		opts.Refresher = refresher
		logger.WithField("issuer", cfg.OIDC.External.Issuer).Info("external IdP mode")
	} else {
		if cfg.Tokens.SigningKeyPath != "" {
			keys, err = auth.LoadOrGenerateKeySet(cfg.Tokens.SigningKeyPath)
		} else {
			logger.Warn("tokens.signing_key_path not set, using an ephemeral signing key")
			keys, err = auth.GenerateKeySet()
		}
		if err != nil {
			bunx.Close(db)
			return nil, fmt.Errorf("failed to load signing key: %w", err)
		}
		opts.Validator = auth.NewKeySetValidator(keys, cfg.Tokens.Issuer, cfg.Tokens.Audience)
		opts.Issuer = auth.NewIssuer(keys, auth.IssuerOptions{
			Issuer:     cfg.Tokens.Issuer,
			Audience:   cfg.Tokens.Audience,
			AccessTTL:  cfg.Tokens.AccessTTL,
			RefreshTTL: cfg.Tokens.RefreshTTL,
		})
	}

	directory, err := identity.NewDirectory(identity.DirectoryDependencies{
		Accounts:      repository.NewBunAccountRepository(db),
		APIKeys:       repository.NewBunAPIKeyRepository(db),
		CustomData:    repository.NewBunCustomDataRepository(db),
		RefreshTokens: repository.NewBunRefreshTokenRepository(db),
	}, opts)
	if err != nil {
		bunx.Close(db)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &DirectoryBundle{Directory: directory, DB: db, Keys: keys}, nil
}
