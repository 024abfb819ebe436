package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/imamik/nodechaos/internal/telemetry"
)

// historyOut receives the history table.
var historyOut io.Writer = os.Stdout

// History prints the most recent runs stored in a SQLite history file.
func History(ctx context.Context, dbPath string, limit int) error {
	if _, err := os.Stat(dbPath); err != nil {
		return &ExitError{Code: ExitConfig, Err: fmt.Errorf("history database %s: %w", dbPath, err)}
	}
	db, err := telemetry.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	runs, err := db.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(historyOut, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(historyOut, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN ID\tSTARTED\tDURATION\tENTRIES\tNODES\tRESULT")
	for _, r := range runs {
		result := "passed"
		if r.Failed {
			result = "failed"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RunID, r.StartedAt.Local().Format(time.DateTime), r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Entries, r.Nodes, result)
	}
	return w.Flush()
}
