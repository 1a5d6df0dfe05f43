package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fleetpatch/internal/domain/fleet"
)

// TestSaveLoadRoundtrip ensures a run summary is persisted and read back.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "report.yaml")
	repo := NewFileRepository(path)

	summary := fleet.NewRunSummary()
	summary.Add(fleet.NewHostResult(fleet.Target{Host: "h1", Port: fleet.DefaultSSHPort}).
		Finish(fleet.OutcomeSuccess, "updated, 2 occurrence(s)"))

	failed := fleet.NewHostResult(fleet.Target{Host: "h2", Port: 2222})
	failed.ManualRestoreRequired = true
	summary.Add(failed.Finish(fleet.OutcomeVerificationFailed, "manual restore required"))
	summary.Finish()

	require.NoError(t, repo.Save(ctx, summary))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, summary.RunID, loaded.RunID)
	require.Equal(t, summary.Targets, loaded.Targets)
	require.Equal(t, 1, loaded.Succeeded)
	require.Equal(t, 1, loaded.Failed)
	require.Equal(t, fleet.OutcomeSuccess, loaded.Results["h1"].Outcome)
	require.Equal(t, fleet.OutcomeVerificationFailed, loaded.Results["h2:2222"].Outcome)
	require.True(t, loaded.Results["h2:2222"].ManualRestoreRequired)
	require.Equal(t, fleet.Target{Host: "h2", Port: 2222}, loaded.Results["h2:2222"].Target)
}

// TestLoadMissing returns ErrNotFound before any report is written.
func TestLoadMissing(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}
