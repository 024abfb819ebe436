// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import (
	"context"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/nodechaos/internal/logging"
)

// Root returns the root command for the nodechaos CLI.
//
// Persistent flags configure logging; the logger is stored in the command
// context for every subcommand.
func Root() *cobra.Command {
	var (
		verbose   bool
		logFormat string
	)

	cmd := &cobra.Command{
		Use:           "nodechaos",
		Short:         "Node lifecycle chaos for Kubernetes clusters",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			format, err := logging.ParseFormat(logFormat)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger := logging.New(cmd.ErrOrStderr(), verbose, format)
			log.SetLogger(logger)
			cmd.SetContext(log.IntoContext(ctx, logger))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", string(logging.FormatAuto), "Log format: auto, console or json")

	cmd.AddCommand(Run())
	cmd.AddCommand(Validate())
	cmd.AddCommand(Init())
	cmd.AddCommand(History())
	cmd.AddCommand(Version())

	return cmd
}
