package accounts

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/cmdutil"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
)

var enableCmd = &cobra.Command{
	Use:   "enable [href|id]",
	Short: "Enable an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(cmd, args[0], identity.StatusEnabled)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable [href|id]",
	Short: "Disable an account",
	Long: `Disables an account. Requests carrying the account's session reference,
tokens or API keys stop resolving on their next request, even if the tokens
have not expired.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(cmd, args[0], identity.StatusDisabled)
	},
}

func setStatus(cmd *cobra.Command, ref, status string) error {
	cfg, logger, err := cmdutil.Load()
	if err != nil {
		return err
	}

	bundle, err := cmdutil.NewDirectoryBundle(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer bundle.Close()

	if err := bundle.Directory.SetAccountStatus(cmd.Context(), ref, status); err != nil {
		return fmt.Errorf("failed to set account status: %w", err)
	}

	fmt.Printf("✓ Account %s is now %s\n", ref, status)
	return nil
}
