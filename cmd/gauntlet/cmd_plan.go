package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gauntlet/internal/schedule"
)

var planBaseRef string

// planCmd prints the phase/shard plan without executing it.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the execution plan without running anything",
	Long: `Discovers specs, runs impact analysis and cost estimation, and
prints the resulting phase and shard assignment. Equivalent to
'gauntlet run --dry-run' but without runner setup.`,
	RunE: showPlan,
}

func init() {
	planCmd.Flags().StringVar(&planBaseRef, "base", "", "Git base ref for impact analysis (default: config)")
}

func showPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := newPipeline(workspace)
	if err != nil {
		return err
	}
	defer p.close()

	specs, err := p.discoverSpecs()
	if err != nil {
		return err
	}

	impacted, err := p.impactedSpecs(ctx, specs, planBaseRef)
	if err != nil {
		return err
	}

	plan := schedule.Build(specs, impacted, p.est, p.effectiveWorkers())
	fmt.Print(renderPlan(plan))
	return nil
}
