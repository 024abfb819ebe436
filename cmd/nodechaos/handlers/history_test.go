package handlers

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodechaos/internal/chaos"
	"github.com/imamik/nodechaos/internal/config"
	"github.com/imamik/nodechaos/internal/telemetry"
	chaostest "github.com/imamik/nodechaos/internal/testing"
)

func captureHistory(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := historyOut
	buf := &bytes.Buffer{}
	historyOut = buf
	t.Cleanup(func() { historyOut = orig })
	return buf
}

func TestHistory(t *testing.T) {
	out := captureHistory(t)
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := chaostest.TestContext(t)

	db, err := telemetry.OpenSQLite(path)
	require.NoError(t, err)
	start := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	ledger := chaos.NewLedger()
	ledger.Append(*chaos.NewAffectedNode("worker-1", config.ActionReboot, "s1-1"))
	report := telemetry.NewReport(start, start.Add(95*time.Second), []chaos.EntryResult{
		{Entry: config.ScenarioEntry{CloudType: "aws"}, Ledger: ledger},
	})
	require.NoError(t, db.Write(ctx, report))
	require.NoError(t, db.Close())

	require.NoError(t, History(ctx, path, 10))
	assert.Contains(t, out.String(), "RUN ID")
	assert.Contains(t, out.String(), report.RunID)
	assert.Contains(t, out.String(), "1m35s")
	assert.Contains(t, out.String(), "passed")
}

func TestHistory_Empty(t *testing.T) {
	out := captureHistory(t)
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := telemetry.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, History(chaostest.TestContext(t), path, 10))
	assert.Contains(t, out.String(), "No runs recorded.")
}

func TestHistory_MissingDatabase(t *testing.T) {
	captureHistory(t)
	err := History(chaostest.TestContext(t), filepath.Join(t.TempDir(), "absent.db"), 10)
	require.Error(t, err)
	assert.Equal(t, ExitConfig, ExitCode(err))
}
