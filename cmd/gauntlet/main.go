// gauntlet orchestrates third-party test runners: it discovers spec
// files, estimates their cost, selects the ones a git diff impacts,
// partitions them into prioritized phases, shards each phase across
// worker subprocesses, and writes a JSON report.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gauntlet/internal/logging"
)

var (
	// Global flags
	verbose   bool
	workspace string
	workers   int

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gauntlet",
	Short: "gauntlet - prioritized parallel test orchestration",
	Long: `gauntlet schedules and runs an existing test suite through its
native runners (Jest, Cypress, go test) without reimplementing them.

It estimates per-spec cost from heuristics and recorded history,
detects which specs a git diff impacts, partitions work into
prioritized phases, and shards each phase across worker subprocesses
with per-spec and whole-suite timeouts. Results are aggregated into a
JSON report with failure signatures.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("cannot determine workspace: %w", err)
			}
		}
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Worker count (default: config, then min(4, NumCPU))")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(impactedCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
