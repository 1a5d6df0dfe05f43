package updater

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oshokin/fleetpatch/internal/config"
	"github.com/oshokin/fleetpatch/internal/domain/fleet"
	"github.com/oshokin/fleetpatch/internal/inventory"
	"github.com/oshokin/fleetpatch/internal/logger"
	"github.com/oshokin/fleetpatch/internal/remote"
	"github.com/oshokin/fleetpatch/internal/repository/report"
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Concurrency overrides the configured concurrency limit when positive.
	Concurrency int
	// Yes skips the interactive confirmation prompt.
	Yes bool
}

// ErrHostsFailed signals that the run completed but one or more hosts did
// not succeed. The CLI maps it to a distinct exit code for pipelines.
var ErrHostsFailed = errors.New("one or more hosts failed")

// Run executes a fleet update end to end: load and validate configuration,
// resolve credentials, load the inventory, confirm with the operator, fan
// the workflow out across all hosts and render the summary. It is the public
// entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "fleetpatch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}

	if cfg.LogFile != "" {
		teed, teeErr := logger.NewTee(logger.Level(), cfg.LogFile)
		if teeErr != nil {
			return fmt.Errorf("set up log file: %w", teeErr)
		}

		logger.SetLogger(teed)
	}

	// Pre-flight: everything below must pass before any host is contacted.
	targets, err := inventory.Load(cfg.Inventory)
	if err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}

	creds, err := remote.LoadCredentials(cfg.User, cfg.KeyFile, cfg.KnownHostsFile)
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}

	spec := fleet.EditSpec{
		FilePath: cfg.RemoteFile,
		OldValue: cfg.OldValue,
		NewValue: cfg.NewValue,
	}
	if err = spec.Validate(); err != nil {
		return fmt.Errorf("validate edit spec: %w", err)
	}

	logger.InfoKV(ctx, "Fleet config update",
		"file", spec.FilePath,
		"hosts", len(targets),
		"user", creds.User,
	)

	if !opts.Yes && !confirm() {
		logger.Info(ctx, "Update cancelled")

		return nil
	}

	dialer := remote.NewSSHDialer(creds, cfg.ConnectTimeout, cfg.CommandTimeout)
	workflow := NewWorkflow(dialer, spec, WithBackupFetchDir(cfg.BackupFetchDir))
	coordinator := NewCoordinator(workflow, cfg.Concurrency)

	summary, err := coordinator.Run(ctx, targets)
	if err != nil {
		return fmt.Errorf("run update: %w", err)
	}

	renderSummary(ctx, summary)

	if cfg.ReportFile != "" {
		repo := report.NewFileRepository(cfg.ReportFile)
		if saveErr := repo.Save(ctx, summary); saveErr != nil {
			// The run itself finished; a report write failure must not
			// change how its outcome is signalled.
			logger.Errorf(ctx, "Failed to write run report: %v", saveErr)
		} else {
			logger.Infof(ctx, "Run report written to %s", cfg.ReportFile)
		}
	}

	if !summary.AllSucceeded() {
		return ErrHostsFailed
	}

	return nil
}

// confirm asks the operator to type "yes" before any host is touched,
// matching the behavior of the scripts this tool replaces.
func confirm() bool {
	fmt.Print("Continue with update? (yes/no): ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(line), "yes")
}

// renderSummary logs the per-host and aggregate outcome of the run.
func renderSummary(ctx context.Context, summary *fleet.RunSummary) {
	logger.Info(ctx, "=== Update summary ===")

	for _, key := range summary.Targets {
		result := summary.Results[key]

		logger.InfoKV(ctx, key,
			"outcome", result.Outcome.String(),
			"detail", result.Detail,
			"duration", result.Duration().Round(time.Millisecond).String(),
		)
	}

	logger.InfoKV(ctx, "Totals",
		"run_id", summary.RunID,
		"processed", summary.Total(),
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
}
