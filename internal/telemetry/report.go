// Package telemetry turns the ledgers of a run into a report and exports it
// to files, object storage, a SQLite history and Prometheus.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
)

// EntryReport summarizes one scenario entry.
type EntryReport struct {
	CloudType string          `json:"cloudType"`
	Actions   []config.Action `json:"actions"`
	Nodes     int             `json:"nodes"`
	Error     string          `json:"error,omitempty"`
}

// Report is the result of one run.
type Report struct {
	RunID         string               `json:"runId"`
	StartedAt     time.Time            `json:"startedAt"`
	FinishedAt    time.Time            `json:"finishedAt"`
	Entries       []EntryReport        `json:"entries"`
	AffectedNodes []chaos.AffectedNode `json:"affectedNodes"`
}

// NewReport builds a report from the results of Orchestrator.RunEach.
func NewReport(startedAt, finishedAt time.Time, results []chaos.EntryResult) *Report {
	r := &Report{
		RunID:         uuid.NewString(),
		StartedAt:     startedAt.UTC(),
		FinishedAt:    finishedAt.UTC(),
		Entries:       make([]EntryReport, 0, len(results)),
		AffectedNodes: []chaos.AffectedNode{},
	}
	for _, res := range results {
		entry := EntryReport{
			CloudType: string(res.Entry.Cloud()),
			Actions:   res.Entry.Actions,
		}
		if res.Ledger != nil {
			nodes := res.Ledger.Entries()
			entry.Nodes = len(nodes)
			r.AffectedNodes = append(r.AffectedNodes, nodes...)
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		r.Entries = append(r.Entries, entry)
	}
	return r
}

// Failed reports whether any entry failed.
func (r *Report) Failed() bool {
	for _, e := range r.Entries {
		if e.Error != "" {
			return true
		}
	}
	return false
}

// Outcomes counts affected nodes by outcome.
func (r *Report) Outcomes() map[chaos.Outcome]int {
	counts := map[chaos.Outcome]int{}
	for _, n := range r.AffectedNodes {
		counts[n.Outcome]++
	}
	return counts
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Sink receives finished reports.
type Sink interface {
	Name() string
	Write(ctx context.Context, r *Report) error
}

// Multi writes the report to every sink. All sinks are attempted; failures
// are joined.
func Multi(ctx context.Context, r *Report, sinks ...Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
