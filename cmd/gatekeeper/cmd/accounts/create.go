package accounts

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/cmdutil"
	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/internal/identity"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account",
	Args:  cobra.NoArgs,
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

		account, err := bundle.Directory.CreateAccount(cmd.Context(), identity.NewAccount{
			Username:  usernameFlag,
			Email:     emailFlag,
			GivenName: givenNameFlag,
			Surname:   surnameFlag,
			Status:    strings.ToUpper(statusFlag),
		})
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}

		fmt.Println("Account created successfully!")
		fmt.Println("----------------------------------------")
		fmt.Printf("ID:     %s\n", account.ID)
		fmt.Printf("Href:   %s\n", account.Href)
		fmt.Printf("Status: %s\n", account.Status)
		fmt.Println("----------------------------------------")
		return nil
	},
}
