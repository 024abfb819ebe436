package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodechaos/cmd/nodechaos/handlers"
)

// Run returns the command that executes a scenario file.
//
// Environment variables:
//
//	HCLOUD_TOKEN: Hetzner Cloud API token (hetzner entries)
//	AWS_*: standard AWS credential chain (aws entries, S3 upload)
//	NODECHAOS_API_TIMEOUT, NODECHAOS_RETRY_MAX_ATTEMPTS, NODECHAOS_RETRY_INITIAL_DELAY
func Run() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the chaos scenarios of a scenario file",
		Long: `Run every entry of a scenario file against the cluster.

Each entry selects nodes, applies its actions through the cloud backend or
over SSH and waits until both the cloud provider and Kubernetes report the
expected state. Entries run in order; a failed entry does not stop the
following ones but makes the command exit non-zero.

Exit codes:
  0  every entry succeeded
  1  at least one entry failed
  2  the scenario file or an entry is invalid

Examples:
  # Run scenario.yaml with the current kubeconfig
  nodechaos run

  # Keep a report and a local run history
  nodechaos run -c reboot.yaml -o report.json --history chaos.db

  # Upload the report to Hetzner object storage
  nodechaos run --s3-bucket chaos --s3-endpoint https://fsn1.your-objectstorage.com`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "scenario.yaml", "Path to scenario file")
	f.StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: $KUBECONFIG, ~/.kube/config, in-cluster)")
	f.StringVarP(&opts.ReportPath, "output", "o", "", "Write the run report to this file (.json or .yaml)")
	f.StringVar(&opts.ReportFormat, "output-format", "", "Report format, overrides the file extension: json or yaml")
	f.StringVar(&opts.HistoryDB, "history", "", "Append the run to this SQLite history database")
	f.StringVar(&opts.PushGateway, "pushgateway", "", "Push run metrics to this Prometheus Pushgateway URL")
	f.StringVar(&opts.S3Bucket, "s3-bucket", "", "Upload the report to this S3 bucket")
	f.StringVar(&opts.S3Prefix, "s3-prefix", "nodechaos", "Object key prefix for S3 uploads")
	f.StringVar(&opts.S3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL (enables path-style addressing)")
	f.StringVar(&opts.S3Region, "s3-region", "", "S3 region")

	return cmd
}
