package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gauntlet/internal/discover"
	"gauntlet/internal/impact"
	"gauntlet/internal/report"
	"gauntlet/internal/runner"
	"gauntlet/internal/schedule"
)

var (
	runBaseRef      string
	runImpactedOnly bool
	runDryRun       bool
	runJSONOut      string
)

// runCmd executes the full pipeline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover, schedule and execute the test suite",
	Long: `Runs the full pipeline:
  1. Discover: collect spec files matching the configured globs
  2. Estimate: predict per-spec cost from heuristics and history
  3. Impact: select specs affected by the git diff
  4. Schedule: partition into phases, shard across workers
  5. Execute: run each shard's specs through the native runner
  6. Report: aggregate results into a JSON report

Exits non-zero when any spec failed or timed out.`,
	RunE: runSuite,
}

func init() {
	runCmd.Flags().StringVar(&runBaseRef, "base", "", "Git base ref for impact analysis (default: config)")
	runCmd.Flags().BoolVar(&runImpactedOnly, "impacted-only", false, "Run only specs impacted by the diff")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the plan without executing")
	runCmd.Flags().StringVar(&runJSONOut, "json-out", "", "Report path (default: config)")
}

func runSuite(cmd *cobra.Command, args []string) error {
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

	impacted, err := p.impactedSpecs(ctx, specs, runBaseRef)
	if err != nil {
		return err
	}

	if runImpactedOnly {
		specs = restrictToImpacted(specs, impacted)
		logger.Info("Restricted to impacted specs", zap.Int("count", len(specs)))
	}

	plan := schedule.Build(specs, impacted, p.est, p.effectiveWorkers())

	if runDryRun {
		fmt.Print(renderPlan(plan))
		fmt.Println("(dry run - specs not executed)")
		return nil
	}

	pool := runner.NewPool(runner.Options{
		SpecTimeout:  p.cfg.GetSpecTimeout(),
		SuiteTimeout: p.cfg.GetSuiteTimeout(),
		Commands: &runner.CommandBuilder{
			Root:     p.workspace,
			Override: p.cfg.Execution.Command,
			Browser:  p.cfg.Execution.Browser,
			BaseURL:  p.cfg.Execution.BaseURL,
		},
	})

	started := time.Now()
	results := pool.Run(ctx, plan)
	rep := report.Aggregate(results, started, time.Now())

	jsonOut := runJSONOut
	if jsonOut == "" {
		jsonOut = p.cfg.Report.JSONPath
	}
	if !filepath.IsAbs(jsonOut) {
		jsonOut = filepath.Join(p.workspace, jsonOut)
	}
	if err := rep.WriteJSON(jsonOut); err != nil {
		logger.Error("report write failed", zap.Error(err))
	}

	if p.hist != nil {
		if err := p.hist.RecordRun(rep); err != nil {
			logger.Warn("history record failed", zap.Error(err))
		}
	}

	fmt.Print(rep.Summary())

	if !rep.Ok() {
		// Visible failure for CI without the cobra usage banner.
		cmd.SilenceUsage = true
		return fmt.Errorf("%d of %d specs did not pass", rep.Failed+rep.TimedOut, rep.Total)
	}
	return nil
}

// restrictToImpacted filters the discovered specs down to the
// impacted set, preserving discovery order.
func restrictToImpacted(specs []discover.SpecFile, impacted []impact.ImpactedSpec) []discover.SpecFile {
	keep := make(map[string]bool, len(impacted))
	for _, is := range impacted {
		keep[is.Spec.Path] = true
	}
	var out []discover.SpecFile
	for _, s := range specs {
		if keep[s.Path] {
			out = append(out, s)
		}
	}
	return out
}
