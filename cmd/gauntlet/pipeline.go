package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"gauntlet/internal/config"
	"gauntlet/internal/discover"
	"gauntlet/internal/estimate"
	"gauntlet/internal/history"
	"gauntlet/internal/impact"
	"gauntlet/internal/schedule"
)

// pipeline bundles the stages every subcommand composes from.
type pipeline struct {
	cfg       *config.Config
	workspace string
	hist      *history.Store // nil when the store could not open
	est       *estimate.Estimator
}

// newPipeline loads config and opens the history store. A broken
// history database degrades to heuristics-only estimation.
func newPipeline(workspace string) (*pipeline, error) {
	cfg, err := config.LoadWorkspace(workspace)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	p := &pipeline{cfg: cfg, workspace: workspace}

	dbPath := cfg.History.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, dbPath)
	}
	hist, err := history.Open(dbPath)
	if err != nil {
		logger.Warn("history store unavailable, using pure heuristics", zap.Error(err))
		p.est = estimate.New(nil, cfg.History.FlakyMinRuns)
	} else {
		p.hist = hist
		p.est = estimate.New(hist, cfg.History.FlakyMinRuns)
	}

	return p, nil
}

func (p *pipeline) close() {
	if p.hist != nil {
		_ = p.hist.Close()
	}
}

// discoverSpecs runs the configured scan.
func (p *pipeline) discoverSpecs() ([]discover.SpecFile, error) {
	scanner := discover.NewScanner(p.workspace, p.cfg.Discovery.Patterns, p.cfg.Discovery.Ignore)
	return scanner.Scan()
}

// impactedSpecs resolves the git diff against baseRef and maps it onto
// the discovered specs. An empty result means no diff information.
func (p *pipeline) impactedSpecs(ctx context.Context, specs []discover.SpecFile, baseRef string) ([]impact.ImpactedSpec, error) {
	if baseRef == "" {
		baseRef = p.cfg.Impact.BaseRef
	}
	changed, err := impact.ChangedFiles(ctx, p.workspace, baseRef)
	if err != nil {
		return nil, err
	}
	analyzer := impact.NewAnalyzer(p.workspace, p.cfg.Impact.GlobalFiles)
	return analyzer.Impacted(specs, changed), nil
}

// effectiveWorkers resolves the --workers flag against config.
func (p *pipeline) effectiveWorkers() int {
	if workers > 0 {
		return workers
	}
	return p.cfg.Execution.Workers
}

// renderPlan prints a phase/shard breakdown without executing it.
func renderPlan(plan *schedule.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Plan: %d specs, %d phases, %d workers\n",
		plan.TotalSpecs(), len(plan.Phases), plan.Workers)

	for _, phase := range plan.Phases {
		var totalMs int64
		for _, s := range phase.Specs {
			totalMs += s.CostMs
		}
		fmt.Fprintf(&b, "\nPhase %s (%d specs, ~%dms serial):\n", phase.Name, len(phase.Specs), totalMs)

		for _, shard := range schedule.ShardPhase(phase, plan.Workers) {
			fmt.Fprintf(&b, "  worker %d (~%dms):\n", shard.Index, shard.EstimatedMs)
			for _, s := range shard.Specs {
				line := fmt.Sprintf("    %-9s %6dms  %s", s.Spec.Kind, s.CostMs, s.Spec.Path)
				if s.Priority != "" {
					line += fmt.Sprintf("  [%s: %s]", s.Priority, s.Reason)
				}
				b.WriteString(line + "\n")
			}
		}
	}
	return b.String()
}
