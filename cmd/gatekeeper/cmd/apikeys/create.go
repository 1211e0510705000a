package apikeys

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/cmdutil"
)

var createCmd = &cobra.Command{
	Use:   "create [account href|id]",
	Short: "Create an API key for an account",
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

		id, secret, err := bundle.Directory.CreateAPIKey(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}

		fmt.Println("API key created successfully!")
		fmt.Println("----------------------------------------")
		fmt.Printf("ID: %s\n", id)
		fmt.Printf("Secret: %s\n", secret)
		fmt.Println("----------------------------------------")
		fmt.Println("Save the secret securely. It will not be shown again.")
		return nil
	},
}
