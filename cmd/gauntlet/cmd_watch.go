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

	"gauntlet/internal/impact"
	"gauntlet/internal/report"
	"gauntlet/internal/runner"
	"gauntlet/internal/schedule"
	"gauntlet/internal/watch"
)

// watchCmd runs continuous mode.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the tree and re-run impacted specs on change",
	Long: `Watches the workspace for file changes. After a change settles,
the impacted-spec pipeline runs against the changed paths - no git
required. Press ctrl-c to stop.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := newPipeline(workspace)
	if err != nil {
		return err
	}
	defer p.close()

	w, err := watch.New(p.workspace, p.cfg.Discovery.Ignore, func(ctx context.Context, changed []string) {
		if err := runImpactedBatch(ctx, p, changed); err != nil {
			logger.Error("watch run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Println("Watching for changes (ctrl-c to stop)...")
	<-ctx.Done()
	return nil
}

// runImpactedBatch executes the specs impacted by a batch of changed
// paths reported by the watcher.
func runImpactedBatch(ctx context.Context, p *pipeline, changed []string) error {
	specs, err := p.discoverSpecs()
	if err != nil {
		return err
	}

	analyzer := impact.NewAnalyzer(p.workspace, p.cfg.Impact.GlobalFiles)
	impacted := analyzer.Impacted(specs, changed)
	if len(impacted) == 0 {
		logger.Info("No impacted specs for change batch", zap.Int("changed", len(changed)))
		return nil
	}

	specs = restrictToImpacted(specs, impacted)
	plan := schedule.Build(specs, impacted, p.est, p.effectiveWorkers())

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

	jsonOut := p.cfg.Report.JSONPath
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
	return nil
}
