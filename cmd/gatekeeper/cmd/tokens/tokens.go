package tokens

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/cmdutil"
)

// TokensCmd is the parent command for token operations
var TokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Issue access and refresh tokens",
}

var issueCmd = &cobra.Command{
	Use:   "issue [account href|id]",
	Short: "Issue an access/refresh token pair for an account",
	Long: `Signs a new access/refresh token pair for an account with the local signing
key. Only available in internal mode; with an external IdP, tokens come from
the IdP.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := cmdutil.Load()
		if err != nil {
			return err
		}
		if cfg.OIDC.IsExternalIdPMode() {
			return fmt.Errorf("token issuance is not supported when using an external identity provider")
		}
		if cfg.Tokens.SigningKeyPath == "" {
			return fmt.Errorf("tokens.signing_key_path must be set so the server can verify issued tokens")
		}

		bundle, err := cmdutil.NewDirectoryBundle(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer bundle.Close()

		account, err := bundle.Directory.GetAccountByReference(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to find account: %w", err)
		}

		pair, err := bundle.Directory.IssueTokens(cmd.Context(), account.ID)
		if err != nil {
			return fmt.Errorf("failed to issue tokens: %w", err)
		}

		fmt.Printf("Access token (expires %s):\n%s\n\n", pair.AccessExpiresAt.Format(time.RFC3339), pair.AccessToken)
		fmt.Printf("Refresh token (expires %s):\n%s\n", pair.RefreshExpiresAt.Format(time.RFC3339), pair.RefreshToken)
		return nil
	},
}

func init() {
	TokensCmd.AddCommand(issueCmd)
}
