package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/fleetpatch/internal/config"
	"github.com/oshokin/fleetpatch/internal/logger"
	"github.com/oshokin/fleetpatch/internal/service/updater"
	"github.com/oshokin/fleetpatch/internal/version"
)

// Exit codes let pipelines distinguish a clean fleet from a partial failure.
const (
	exitCodeFatal       = 1
	exitCodeHostsFailed = 2
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// concurrency overrides the configured worker limit when positive.
	concurrency int

	// assumeYes skips the interactive confirmation prompt.
	assumeYes bool

	// logLevel sets the console logging level.
	logLevel string

	// rootCmd represents the base command that performs the fleet update.
	rootCmd = &cobra.Command{
		Use:   "fleetpatch",
		Short: "Apply a find-and-replace edit to a config file across a fleet of hosts",
		Long: "Fleetpatch reads a host inventory and, for each host, backs up the target " +
			"configuration file over SSH, applies a literal find-and-replace edit, verifies " +
			"the result and rolls back from the backup when verification fails.",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Stop dispatching new hosts on interrupt; in-flight hosts finish.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &updater.Options{
				ConfigPath:  configPath,
				Concurrency: concurrency,
				Yes:         assumeYes,
			}

			return updater.Run(ctx, options)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the fleetpatch CLI and exits with a status code that
// distinguishes "all hosts succeeded" (0), fatal configuration errors (1)
// and completed runs with failed hosts (2).
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, updater.ErrHostsFailed) {
			logger.Error(context.Background(), err.Error())
			os.Exit(exitCodeHostsFailed)
		}

		logger.Error(context.Background(), err.Error())
		os.Exit(exitCodeFatal)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "max hosts updated simultaneously (overrides config)")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}
