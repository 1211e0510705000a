package apikeys

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/cmdutil"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke [key id]",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := cmdutil.Load()
		if err != nil {
			return err
		}

		bundle, err := cmdutil.NewDirectoryBundle(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Directory.RevokeAPIKey(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to revoke API key: %w", err)
		}

		fmt.Printf("✓ API key %s revoked\n", args[0])
		return nil
	},
}
