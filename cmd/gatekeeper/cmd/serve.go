package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/cmdutil"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/server"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/services/iam"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/telemetry"
)

const refreshTokenPurgeInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gatekeeper server",
	Long: `Starts the HTTP server. Every request passes through principal resolution
before reaching the handlers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := context.WithCancel(cmd.Context())
		defer stop()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.WithError(err).Warn("telemetry shutdown failed")
			}
		}()

		bundle, err := cmdutil.NewDirectoryBundle(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer bundle.Close()

		logger.Info("Connected to database")

		resolutionMetrics, err := telemetry.NewResolutionMetrics()
		if err != nil {
			return fmt.Errorf("failed to create resolution metrics: %w", err)
		}
		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("failed to create server metrics: %w", err)
		}

		opts := iam.OptionsFromConfig(cfg)
		opts.Logger = logger
		opts.Metrics = resolutionMetrics
		resolver, err := iam.NewResolver(bundle.Directory, opts)
		if err != nil {
			return fmt.Errorf("failed to create resolver: %w", err)
		}

		// Key material is refreshed out of band; validators read the current
		// set on every verification.
		if bundle.Keys != nil && cfg.Tokens.SigningKeyPath != "" && cfg.Tokens.KeyRefreshInterval > 0 {
			go bundle.Keys.RefreshEvery(ctx, cfg.Tokens.KeyRefreshInterval, logger)
		}

		go purgeRefreshTokens(ctx, bundle)

		handler := server.NewH2CHandler(server.RouterOptions{
			Resolver: resolver,
			Keys:     bundle.Keys,
			Cfg:      cfg,
			Cookies: auth.CookieWriter{
				Names:  resolver.CookieNames(),
				Secure: cfg.Cookies.Secure,
				Domain: cfg.Cookies.Domain,
				Path:   cfg.Cookies.Path,
			},
			Logger:        logger,
			ServerMetrics: serverMetrics,
		})

		// Create HTTP server
		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			logger.WithFields(logrus.Fields{
				"addr":       cfg.ServerAddr,
				"server_url": cfg.ServerURL,
			}).Info("Starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		// Wait for interrupt signal or key reload signal
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// SIGHUP reloads the signing key from disk
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)

		for {
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)

			case sig := <-reload:
				if bundle.Keys == nil || cfg.Tokens.SigningKeyPath == "" {
					logger.WithField("signal", sig).Warn("no file-backed signing key to reload")
					continue
				}
				changed, err := bundle.Keys.Refresh(ctx)
				if err != nil {
					logger.WithError(err).Error("signing key reload failed")
					continue
				}
				logger.WithFields(logrus.Fields{"signal": sig, "changed": changed}).Info("signing key reloaded")

			case sig := <-shutdown:
				logger.WithField("signal", sig).Info("Shutting down gracefully")
				stop()

				// Graceful shutdown with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}

				logger.Info("Server stopped")
				return nil
			}
		}
	},
}

// purgeRefreshTokens periodically drops rotation records of expired refresh
// tokens until ctx is done.
func purgeRefreshTokens(ctx context.Context, bundle *cmdutil.DirectoryBundle) {
	ticker := time.NewTicker(refreshTokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := bundle.Directory.PurgeExpiredRefreshTokens(ctx)
			if err != nil {
				logger.WithError(err).Warn("refresh token purge failed")
				continue
			}
			if n > 0 {
				logger.WithField("deleted", n).Debug("purged expired refresh tokens")
			}
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
