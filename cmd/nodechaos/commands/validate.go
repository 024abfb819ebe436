package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodechaos/cmd/nodechaos/handlers"
)

// Validate returns the command that checks a scenario file offline.
func Validate() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a scenario file without running it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Validate(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "scenario.yaml", "Path to scenario file")

	return cmd
}
