package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
	"github.com/imamik/nodechaos/internal/k8s"
	"github.com/imamik/nodechaos/internal/platform/s3"
	"github.com/imamik/nodechaos/internal/platform/ssh"
	"github.com/imamik/nodechaos/internal/provider"
	"github.com/imamik/nodechaos/internal/telemetry"
)

// RunOptions holds the flags of the run command.
type RunOptions struct {
	ConfigPath string
	Kubeconfig string

	// Report exports. Empty values disable the sink.
	ReportPath   string
	ReportFormat string
	HistoryDB    string
	PushGateway  string
	S3Bucket     string
	S3Prefix     string
	S3Endpoint   string
	S3Region     string
}

// Cluster is what the run command needs from the Kubernetes client.
type Cluster interface {
	chaos.ClusterProbe
	ssh.AddressResolver
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadScenarioFile loads and validates a scenario file.
	loadScenarioFile = config.LoadFile

	// newCluster creates the Kubernetes client used as health probe.
	newCluster = func(kubeconfig string) (Cluster, error) {
		return k8s.NewClient(kubeconfig)
	}

	// newBackendFactory creates the cloud backend factory.
	newBackendFactory = func() chaos.BackendFactory {
		return provider.NewFactory(provider.WithTimeouts(config.LoadTimeouts()))
	}

	// newObjectStore creates the S3 client for report uploads.
	newObjectStore = func(ctx context.Context, opts s3.Options) (telemetry.ObjectStore, error) {
		return s3.NewClient(ctx, opts)
	}

	// loadPrivateKey reads SSH keys for remote actions.
	loadPrivateKey = ssh.LoadPrivateKey

	// now returns the current time.
	now = time.Now

	// summaryOut receives the run summary.
	summaryOut io.Writer = os.Stdout
)

// Run executes every scenario entry of the configured file, exports the
// report and prints a summary. Entries run in order; a failed entry does
// not stop later ones but makes the command fail.
func Run(ctx context.Context, opts RunOptions) error {
	logger := log.FromContext(ctx)

	file, err := loadScenarioFile(opts.ConfigPath)
	if err != nil {
		return &ExitError{Code: ExitConfig, Err: err}
	}

	sinks, closeSinks, err := buildSinks(ctx, opts)
	if err != nil {
		return &ExitError{Code: ExitConfig, Err: err}
	}
	defer closeSinks()

	cluster, err := newCluster(opts.Kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster: %w", err)
	}

	orchestrator := chaos.NewOrchestrator(newBackendFactory(), cluster,
		chaos.WithRemoteFactory(remoteFactory(cluster)))

	logger.Info("Starting chaos run", "config", opts.ConfigPath, "entries", len(file.NodeScenarios))
	started := now()
	results := orchestrator.RunEach(ctx, file.NodeScenarios)
	report := telemetry.NewReport(started, now(), results)
	logger.Info("Chaos run finished", "runId", report.RunID, "affectedNodes", len(report.AffectedNodes), "duration", report.Duration())

	if err := telemetry.Multi(ctx, report, sinks...); err != nil {
		logger.Error(err, "Failed to export report")
	}

	_, _ = fmt.Fprint(summaryOut, renderRunSummary(report))

	return runError(results)
}

// runError joins the errors of failed entries. The exit code is
// ExitConfig only when every failure is a configuration error.
func runError(results []chaos.EntryResult) error {
	var errs []error
	allConfig := true
	for i, res := range results {
		if res.Err == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("node_scenarios[%d]: %w", i, res.Err))
		if !errors.Is(res.Err, chaos.ErrConfiguration) {
			allConfig = false
		}
	}
	if len(errs) == 0 {
		return nil
	}
	code := ExitFailed
	if allConfig {
		code = ExitConfig
	}
	return &ExitError{Code: code, Err: errors.Join(errs...)}
}

// remoteFactory builds an SSH runner per scenario entry. Node addresses
// are looked up in the cluster.
func remoteFactory(resolver ssh.AddressResolver) chaos.RemoteFactory {
	return func(_ context.Context, entry *config.ScenarioEntry) (chaos.RemoteExecutor, error) {
		key, err := loadPrivateKey(entry.SSHPrivateKey)
		if err != nil {
			return nil, err
		}
		return ssh.NewRunner(&ssh.Config{
			User:       entry.SSHUser,
			PrivateKey: key,
			HelperHost: entry.HelperNodeIP,
		}, resolver)
	}
}

// buildSinks creates the report sinks selected by opts. The returned func
// releases sinks holding resources; on error nothing is left open.
func buildSinks(ctx context.Context, opts RunOptions) ([]telemetry.Sink, func(), error) {
	var sinks []telemetry.Sink
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if opts.ReportPath != "" {
		sink := telemetry.FileSink{Path: opts.ReportPath}
		if opts.ReportFormat != "" {
			format, err := telemetry.ParseFormat(opts.ReportFormat)
			if err != nil {
				return nil, nil, err
			}
			sink.Format = format
		}
		sinks = append(sinks, sink)
	}

	if opts.HistoryDB != "" {
		db, err := telemetry.OpenSQLite(opts.HistoryDB)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		sinks = append(sinks, db)
	}

	if opts.PushGateway != "" {
		sinks = append(sinks, telemetry.NewMetricsSink(opts.PushGateway, ""))
	}

	if opts.S3Bucket != "" {
		store, err := newObjectStore(ctx, s3.Options{
			Endpoint:  opts.S3Endpoint,
			Region:    opts.S3Region,
			PathStyle: opts.S3Endpoint != "",
		})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		sinks = append(sinks, &telemetry.S3Sink{Store: store, Bucket: opts.S3Bucket, Prefix: opts.S3Prefix})
	}

	return sinks, closeAll, nil
}
