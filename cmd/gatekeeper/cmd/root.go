package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/accounts"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/apikeys"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/cmdutil"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/tokens"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Gatekeeper resolves the principal behind HTTP requests",
	Long: `Gatekeeper resolves the authenticated account behind each HTTP request from
session cookies, access/refresh token cookies, API keys (HTTP Basic) and Bearer
tokens, checking live account status against its identity directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfigFile(); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = cmdutil.NewLogger(cfg)
		return nil
	},
}

func readConfigFile() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("gatekeeper")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/gatekeeper")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./gatekeeper.yaml)")
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: GATEKEEPER_DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: GATEKEEPER_SERVER_ADDR)")
	rootCmd.PersistentFlags().String("server-url", "", "Server base URL used for account hrefs (env: GATEKEEPER_SERVER_URL)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: GATEKEEPER_DEBUG)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (env: GATEKEEPER_LOG_FORMAT)")

	for key, flag := range map[string]string{
		"database_url": "db-url",
		"server_addr":  "server-addr",
		"server_url":   "server-url",
		"debug":        "debug",
		"log_format":   "log-format",
	} {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}

	// Add subcommands
	rootCmd.AddCommand(accounts.AccountsCmd)
	rootCmd.AddCommand(apikeys.APIKeysCmd)
	rootCmd.AddCommand(tokens.TokensCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
