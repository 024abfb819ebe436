package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// MetricsSink records run results as Prometheus metrics and optionally
// pushes them to a Pushgateway.
type MetricsSink struct {
	registry *prometheus.Registry
	pushURL  string
	job      string

	actionsTotal       *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	runDuration        prometheus.Gauge
	lastRun            prometheus.Gauge
	failedEntries      prometheus.Gauge
}

// NewMetricsSink creates the sink with its own registry. An empty pushURL
// disables pushing.
func NewMetricsSink(pushURL, job string) *MetricsSink {
	if job == "" {
		job = "nodechaos"
	}
	s := &MetricsSink{
		registry: prometheus.NewRegistry(),
		pushURL:  pushURL,
		job:      job,
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodechaos",
				Name:      "actions_total",
				Help:      "Node action iterations by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		transitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nodechaos",
				Name:      "transition_duration_seconds",
				Help:      "Time until a node reached a state after an action",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5min
			},
			[]string{"action", "transition"},
		),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodechaos",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodechaos",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		failedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodechaos",
			Name:      "failed_entries",
			Help:      "Scenario entries that failed in the last run",
		}),
	}
	s.registry.MustRegister(s.actionsTotal, s.transitionDuration, s.runDuration, s.lastRun, s.failedEntries)
	return s
}

// Registry exposes the registry, e.g. for promhttp.
func (s *MetricsSink) Registry() *prometheus.Registry { return s.registry }

// Name implements Sink.
func (s *MetricsSink) Name() string { return "metrics" }

// Write implements Sink.
func (s *MetricsSink) Write(ctx context.Context, r *Report) error {
	s.Observe(r)
	if s.pushURL == "" {
		return nil
	}
	err := push.New(s.pushURL, s.job).
		Gatherer(s.registry).
		Grouping("run_id", r.RunID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", s.pushURL, err)
	}
	return nil
}

// Observe updates the metrics from a report.
func (s *MetricsSink) Observe(r *Report) {
	for _, n := range r.AffectedNodes {
		s.actionsTotal.WithLabelValues(string(n.Action), string(n.Outcome)).Inc()
		for t, secs := range n.Transitions {
			s.transitionDuration.WithLabelValues(string(n.Action), string(t)).Observe(secs)
		}
	}
	failed := 0
	for _, e := range r.Entries {
		if e.Error != "" {
			failed++
		}
	}
	s.failedEntries.Set(float64(failed))
	s.runDuration.Set(r.Duration().Seconds())
	s.lastRun.Set(float64(r.FinishedAt.Unix()))
}
