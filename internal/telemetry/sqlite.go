package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink keeps a history of runs and affected nodes in a SQLite file.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    int
	Nodes      int
	Failed     bool
}

// OpenSQLite opens or creates the history database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteSink{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		entries INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		report JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS affected_nodes (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		event_id TEXT NOT NULL,
		node_name TEXT NOT NULL,
		node_id TEXT,
		action TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		transitions JSON,
		PRIMARY KEY (run_id, event_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_affected_nodes_node ON affected_nodes(node_name);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Name implements Sink.
func (s *SQLiteSink) Name() string { return "sqlite " + s.path }

// Write implements Sink. The run and its nodes are stored in one transaction.
func (s *SQLiteSink) Write(ctx context.Context, r *Report) error {
	report, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, entries, failed, report) VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.StartedAt, r.FinishedAt, len(r.Entries), r.Failed(), string(report))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO affected_nodes (run_id, event_id, node_name, node_id, action, outcome, error, transitions) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, n := range r.AffectedNodes {
		transitions, err := json.Marshal(n.Transitions)
		if err != nil {
			return fmt.Errorf("failed to encode transitions: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.RunID, n.EventID, n.NodeName, n.NodeID,
			string(n.Action), string(n.Outcome), n.Error, string(transitions)); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.NodeName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", r.RunID, err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *SQLiteSink) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.started_at, r.finished_at, r.entries, r.failed,
		       (SELECT COUNT(*) FROM affected_nodes n WHERE n.run_id = r.run_id)
		FROM runs r
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(&run.RunID, &run.StartedAt, &run.FinishedAt, &run.Entries, &run.Failed, &run.Nodes); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
