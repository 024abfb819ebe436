package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
	"github.com/imamik/nodechaos/internal/platform/s3"
	"github.com/imamik/nodechaos/internal/telemetry"
	chaostest "github.com/imamik/nodechaos/internal/testing"
)

// saveAndRestoreRunFactories saves and restores the run factory functions.
func saveAndRestoreRunFactories(t *testing.T) {
	origLoad := loadScenarioFile
	origCluster := newCluster
	origFactory := newBackendFactory
	origStore := newObjectStore
	origKey := loadPrivateKey
	origNow := now
	origOut := summaryOut

	t.Cleanup(func() {
		loadScenarioFile = origLoad
		newCluster = origCluster
		newBackendFactory = origFactory
		newObjectStore = origStore
		loadPrivateKey = origKey
		now = origNow
		summaryOut = origOut
	})
}

type runFixture struct {
	cluster *chaostest.FakeCluster
	backend *chaostest.FakeBackend
	summary *bytes.Buffer
	dir     string
}

func setupRun(t *testing.T, workers int) *runFixture {
	t.Helper()
	saveAndRestoreRunFactories(t)

	f := &runFixture{
		cluster: chaostest.NewFakeCluster().AddWorkers(workers, map[string]string{"role": "worker"}),
		summary: &bytes.Buffer{},
		dir:     t.TempDir(),
	}
	f.backend = chaostest.NewFakeBackend(f.cluster.NodeNames()...)

	newCluster = func(string) (Cluster, error) { return f.cluster, nil }
	newBackendFactory = func() chaos.BackendFactory {
		return chaos.BackendFactoryFunc(func(context.Context, *config.ScenarioEntry) (chaos.CloudBackend, error) {
			return f.backend, nil
		})
	}
	summaryOut = f.summary
	return f
}

func (f *runFixture) scenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const stopTwoWorkers = `
node_scenarios:
  - cloud_type: hetzner
    label_selector: role=worker
    instance_count: 2
    actions: [node_stop_scenario]
`

func TestRun_Success(t *testing.T) {
	f := setupRun(t, 3)
	reportPath := filepath.Join(f.dir, "out", "report.json")
	historyPath := filepath.Join(f.dir, "history.db")

	err := Run(chaostest.TestContext(t), RunOptions{
		ConfigPath: f.scenario(t, stopTwoWorkers),
		ReportPath: reportPath,
		HistoryDB:  historyPath,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report telemetry.Report
	require.NoError(t, json.Unmarshal(data, &report))
	require.Len(t, report.AffectedNodes, 2)
	for _, n := range report.AffectedNodes {
		assert.Equal(t, config.ActionStop, n.Action)
		assert.Equal(t, chaos.OutcomeRecorded, n.Outcome)
		assert.Contains(t, n.Transitions, chaos.TransitionStopped)
		assert.Equal(t, chaos.StateStopped, f.backend.State(n.NodeName))
	}

	assert.Contains(t, f.summary.String(), "PASSED")
	assert.Contains(t, f.summary.String(), report.RunID)

	db, err := telemetry.OpenSQLite(historyPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	runs, err := db.Runs(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].RunID)
}

func TestRun_BackendFailureContinuesWithNextEntry(t *testing.T) {
	f := setupRun(t, 2)
	f.backend.Fail("worker-1", "stop", chaostest.ErrInjected)
	reportPath := filepath.Join(f.dir, "report.yaml")

	err := Run(chaostest.TestContext(t), RunOptions{
		ConfigPath: f.scenario(t, `
node_scenarios:
  - cloud_type: aws
    node_name: worker-1
    actions: [node_stop_scenario]
  - cloud_type: aws
    node_name: worker-2
    actions: [node_reboot_scenario]
`),
		ReportPath: reportPath,
	})
	require.Error(t, err)
	assert.Equal(t, ExitFailed, ExitCode(err))
	assert.Contains(t, err.Error(), "node_scenarios[0]")
	assert.NotContains(t, err.Error(), "node_scenarios[1]")
	assert.ErrorIs(t, err, chaos.ErrBackend)

	assert.Contains(t, f.summary.String(), "FAILED")
	assert.FileExists(t, reportPath)
	assert.Contains(t, f.backend.Calls(), "reboot:worker-2")
}

func TestRun_MissingNodeIsFailure(t *testing.T) {
	f := setupRun(t, 1)

	err := Run(chaostest.TestContext(t), RunOptions{ConfigPath: f.scenario(t, `
node_scenarios:
  - cloud_type: hcloud
    node_name: missing-node
    actions: [node_reboot_scenario]
`)})
	require.Error(t, err)
	assert.ErrorIs(t, err, chaos.ErrSelection)
	assert.Equal(t, ExitFailed, ExitCode(err))
	assert.Empty(t, f.backend.Calls())
}

func TestRun_UnsupportedActionIsConfigError(t *testing.T) {
	f := setupRun(t, 1)
	f.backend.SetCapabilities(chaos.Capabilities{Actions: chaos.NewActionSet(chaos.RemoteActions)})

	err := Run(chaostest.TestContext(t), RunOptions{ConfigPath: f.scenario(t, stopTwoWorkers)})
	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
}

func TestRun_InvalidScenarioFile(t *testing.T) {
	f := setupRun(t, 1)
	clusterCreated := false
	newCluster = func(string) (Cluster, error) {
		clusterCreated = true
		return f.cluster, nil
	}

	err := Run(chaostest.TestContext(t), RunOptions{ConfigPath: f.scenario(t, "node_scenarios: []\n")})
	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
	assert.False(t, clusterCreated)
}

func TestRun_ClusterUnavailable(t *testing.T) {
	f := setupRun(t, 1)
	newCluster = func(string) (Cluster, error) { return nil, errors.New("no kubeconfig") }

	err := Run(chaostest.TestContext(t), RunOptions{ConfigPath: f.scenario(t, stopTwoWorkers)})
	require.Error(t, err)
	assert.Equal(t, ExitFailed, ExitCode(err))
	assert.Contains(t, err.Error(), "failed to connect to cluster")
}

func TestRun_RemoteActionsUseSSHKey(t *testing.T) {
	f := setupRun(t, 1)
	var keyPath string
	loadPrivateKey = func(path string) ([]byte, error) {
		keyPath = path
		return nil, errors.New("key not readable")
	}

	err := Run(chaostest.TestContext(t), RunOptions{ConfigPath: f.scenario(t, `
node_scenarios:
  - cloud_type: bm
    node_name: worker-1
    ssh_private_key: /keys/chaos
    actions: [restart_kubelet_scenario]
`)})
	require.Error(t, err)
	assert.Equal(t, "/keys/chaos", keyPath)
	assert.ErrorIs(t, err, chaos.ErrConfiguration)
	assert.Equal(t, ExitConfig, ExitCode(err))
}

type memStore struct {
	objects map[string][]byte
}

func (m *memStore) EnsureBucket(context.Context, string) error { return nil }

func (m *memStore) PutObject(_ context.Context, bucket, key, _ string, data []byte) error {
	m.objects[bucket+"/"+key] = data
	return nil
}

func TestRun_UploadsToS3(t *testing.T) {
	f := setupRun(t, 2)
	store := &memStore{objects: map[string][]byte{}}
	var gotOpts s3.Options
	newObjectStore = func(_ context.Context, opts s3.Options) (telemetry.ObjectStore, error) {
		gotOpts = opts
		return store, nil
	}
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	now = func() time.Time { return start }

	err := Run(chaostest.TestContext(t), RunOptions{
		ConfigPath: f.scenario(t, stopTwoWorkers),
		S3Bucket:   "chaos-reports",
		S3Prefix:   "staging",
		S3Endpoint: "https://fsn1.your-objectstorage.com",
	})
	require.NoError(t, err)

	assert.True(t, gotOpts.PathStyle)
	require.Len(t, store.objects, 1)
	for key := range store.objects {
		assert.Regexp(t, `^chaos-reports/staging/[0-9a-f-]{36}\.json$`, key)
	}
}

func TestBuildSinks(t *testing.T) {
	saveAndRestoreRunFactories(t)
	dir := t.TempDir()

	sinks, closeSinks, err := buildSinks(context.Background(), RunOptions{
		ReportPath:   filepath.Join(dir, "report.txt"),
		ReportFormat: "yaml",
		HistoryDB:    filepath.Join(dir, "history.db"),
		PushGateway:  "http://localhost:9091",
	})
	require.NoError(t, err)
	defer closeSinks()
	require.Len(t, sinks, 3)
	assert.Equal(t, telemetry.FormatYAML, sinks[0].(telemetry.FileSink).Format)
	assert.Equal(t, "metrics", sinks[2].Name())

	_, _, err = buildSinks(context.Background(), RunOptions{ReportPath: "r.out", ReportFormat: "xml"})
	assert.Error(t, err)
}

func TestRunError(t *testing.T) {
	assert.NoError(t, runError([]chaos.EntryResult{{}, {}}))

	cfgOnly := runError([]chaos.EntryResult{{Err: chaos.Configf("bad")}})
	assert.Equal(t, ExitConfig, ExitCode(cfgOnly))

	mixed := runError([]chaos.EntryResult{
		{Err: chaos.Configf("bad")},
		{Err: &chaos.BackendError{Op: "stop", Node: "n", Err: errors.New("boom")}},
	})
	assert.Equal(t, ExitFailed, ExitCode(mixed))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailed, ExitCode(errors.New("x")))
	assert.Equal(t, ExitConfig, ExitCode(chaos.Configf("x")))
	assert.Equal(t, 7, ExitCode(&ExitError{Code: 7, Err: errors.New("x")}))
}
