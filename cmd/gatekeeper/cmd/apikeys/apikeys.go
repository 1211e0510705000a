package apikeys

import "github.com/spf13/cobra"

// APIKeysCmd is the parent command for API key operations
var APIKeysCmd = &cobra.Command{
	Use:   "apikeys",
	Short: "Manage account API keys",
	Long:  `Commands for managing API keys presented as HTTP Basic credentials (id:secret).`,
}

func init() {
	APIKeysCmd.AddCommand(createCmd)
	APIKeysCmd.AddCommand(revokeCmd)
}
