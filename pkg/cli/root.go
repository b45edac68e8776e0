package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/clientops/pkg/config"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "clientops",
		Short:         "clientops - evaluate client lifecycle rules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("rules", "", "YAML rules file (defaults to built-in rules)")

	root.AddCommand(
		newStageCommand(),
		newOnboardingCommand(),
		newDunningCommand(),
		newHealthCommand(),
	)
	return root
}

// loadRules reads the --rules file, falling back to the defaults
func loadRules(cmd *cobra.Command) (config.Rules, error) {
	path, err := cmd.Flags().GetString("rules")
	if err != nil {
		return config.Rules{}, err
	}
	if path == "" {
		return config.DefaultRules(), nil
	}
	return config.LoadRules(path)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
