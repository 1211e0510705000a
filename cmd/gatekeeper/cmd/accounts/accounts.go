package accounts

import "github.com/spf13/cobra"

var (
	emailFlag     string
	usernameFlag  string
	givenNameFlag string
	surnameFlag   string
	statusFlag    string
)

// AccountsCmd is the parent command for directory account operations
var AccountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage directory accounts",
	Long:  `Commands for managing directory accounts directly from the server.`,
}

func init() {
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the account (required)")
	createCmd.Flags().StringVar(&usernameFlag, "username", "", "Username of the account (required)")
	createCmd.Flags().StringVar(&givenNameFlag, "given-name", "", "Given name")
	createCmd.Flags().StringVar(&surnameFlag, "surname", "", "Surname")
	createCmd.Flags().StringVar(&statusFlag, "status", "ENABLED", "Initial status: ENABLED, DISABLED or UNVERIFIED")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("username")

	AccountsCmd.AddCommand(createCmd)
	AccountsCmd.AddCommand(enableCmd)
	AccountsCmd.AddCommand(disableCmd)
	AccountsCmd.AddCommand(listCmd)
	AccountsCmd.AddCommand(customDataCmd)
	customDataCmd.AddCommand(customDataSetCmd)
	customDataCmd.AddCommand(customDataGetCmd)
}
