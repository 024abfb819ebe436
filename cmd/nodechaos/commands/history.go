package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodechaos/cmd/nodechaos/handlers"
)

// History returns the command that lists recorded runs.
func History() *cobra.Command {
	var (
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs recorded with run --history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.History(cmd.Context(), dbPath, limit)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "nodechaos.db", "Path to the SQLite history database")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")

	return cmd
}
