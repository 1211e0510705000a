package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/auth"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Token signing key management",
}

var keysRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Rotate the token signing key",
	Long: `Generates a new signing key and writes it to tokens.signing_key_path. Running
servers pick it up on their next key refresh (tokens.key_refresh_interval or
SIGHUP). Tokens signed with the previous key keep verifying until the next
rotation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.OIDC.IsExternalIdPMode() {
			return fmt.Errorf("signing keys are managed by the external identity provider")
		}
		if cfg.Tokens.SigningKeyPath == "" {
			return fmt.Errorf("tokens.signing_key_path must be set to rotate keys")
		}

		keys, err := auth.LoadOrGenerateKeySet(cfg.Tokens.SigningKeyPath)
		if err != nil {
			return fmt.Errorf("failed to load signing key: %w", err)
		}
		previous, _ := keys.SigningKey()

		kid, err := keys.Rotate()
		if err != nil {
			return fmt.Errorf("failed to rotate signing key: %w", err)
		}

		logger.WithFields(logrus.Fields{"previous_kid": previous, "kid": kid}).Info("signing key rotated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysRotateCmd)
}
