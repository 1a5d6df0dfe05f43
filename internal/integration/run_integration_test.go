package integration

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/oshokin/fleetpatch/internal/config"
	"github.com/oshokin/fleetpatch/internal/domain/fleet"
	"github.com/oshokin/fleetpatch/internal/repository/report"
	"github.com/oshokin/fleetpatch/internal/service/updater"
)

// TestRun_UnreachableFleet drives the whole updater through its public entry
// point against hosts that refuse connections: the run completes, every host
// is recorded as connection-failed, the report lands on disk and the partial
// failure is signalled through ErrHostsFailed.
func TestRun_UnreachableFleet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Private key for credential resolution; it is never used because no
	// connection gets established.
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	keyPath := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	// Nothing listens on port 1 on loopback.
	inventoryPath := filepath.Join(dir, "servers.txt")
	require.NoError(t, os.WriteFile(inventoryPath, []byte("# test fleet\n127.0.0.1:1\nlocalhost:1\n"), 0o600))

	reportPath := filepath.Join(dir, "report.yaml")
	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := &config.Config{
		Inventory:      inventoryPath,
		RemoteFile:     "/etc/app/app.conf",
		OldValue:       "password=old",
		NewValue:       "password=new",
		User:           "deploy",
		KeyFile:        keyPath,
		Concurrency:    2,
		ConnectTimeout: time.Second,
		CommandTimeout: 5 * time.Second,
		ReportFile:     reportPath,
	}
	require.NoError(t, config.Save(cfgPath, cfg))

	err = updater.Run(context.Background(), &updater.Options{
		ConfigPath: cfgPath,
		Yes:        true,
	})
	require.ErrorIs(t, err, updater.ErrHostsFailed)

	// The run is never silently partial: both hosts are in the report.
	summary, err := report.NewFileRepository(reportPath).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total())
	require.Equal(t, 2, summary.Failed)
	require.Zero(t, summary.Succeeded)

	for _, key := range summary.Targets {
		require.Equal(t, fleet.OutcomeConnectionFailed, summary.Results[key].Outcome)
	}
}

// TestRun_BadConfiguration fails fast before contacting any host.
func TestRun_BadConfiguration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Config referencing a missing inventory file.
	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := &config.Config{
		Inventory:  filepath.Join(dir, "missing.txt"),
		RemoteFile: "/etc/app/app.conf",
		OldValue:   "password=old",
		NewValue:   "password=new",
		User:       "deploy",
	}
	require.NoError(t, config.Save(cfgPath, cfg))

	err := updater.Run(context.Background(), &updater.Options{ConfigPath: cfgPath, Yes: true})
	require.Error(t, err)
	require.NotErrorIs(t, err, updater.ErrHostsFailed)
}
