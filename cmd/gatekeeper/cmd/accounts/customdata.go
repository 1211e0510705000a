package accounts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/gatekeeper/cmd/gatekeeper/cmd/cmdutil"
)

var customDataCmd = &cobra.Command{
	Use:   "customdata",
	Short: "Manage account custom data",
}

var customDataSetCmd = &cobra.Command{
	Use:   "set [href|id] key=value...",
	Short: "Merge values into an account's custom data",
	Long: `Merges key=value pairs into the account's custom data. Values that parse as
JSON (numbers, booleans, objects, arrays, quoted strings) are stored as such;
anything else is stored as a plain string.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}

		cfg, logger, err := cmdutil.Load()
		if err != nil {
			return err
		}

		bundle, err := cmdutil.NewDirectoryBundle(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer bundle.Close()

		data, err := bundle.Directory.SetCustomData(cmd.Context(), args[0], values)
		if err != nil {
			return fmt.Errorf("failed to set custom data: %w", err)
		}
		return printJSON(data)
	},
}

var customDataGetCmd = &cobra.Command{
	Use:   "get [href|id]",
	Short: "Show an account's custom data",
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

		account, err := bundle.Directory.GetAccountByReference(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to find account: %w", err)
		}
		data, err := bundle.Directory.GetCustomData(cmd.Context(), account.Href)
		if err != nil {
			return fmt.Errorf("failed to get custom data: %w", err)
		}
		return printJSON(data)
	},
}

func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		values[key] = v
	}
	return values, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
