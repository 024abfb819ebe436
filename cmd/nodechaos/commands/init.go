package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodechaos/cmd/nodechaos/handlers"
)

// Init returns the command for interactively creating a scenario file.
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a scenario file",
		Long: `Interactively create a scenario file.

The wizard asks for the cloud backend, how nodes are selected, which
actions to run and how long to wait for state changes. For kubelet, crash
and sysfs disk actions it also asks for SSH access and can generate a new
key pair.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "scenario.yaml", "Output file path")

	return cmd
}
