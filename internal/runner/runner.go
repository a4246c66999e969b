// Package runner executes a schedule.Plan against the wrapped test
// runner CLIs: an errgroup pool of worker goroutines, one subprocess
// per spec, with per-spec and whole-suite deadlines.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gauntlet/internal/logging"
	"gauntlet/internal/schedule"
)

// Status is the terminal state of one spec execution.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusTimeout Status = "timeout"
	StatusSkipped Status = "skipped"
)

// maxOutputBytes caps captured subprocess output per spec.
const maxOutputBytes = 50 * 1024

// Result captures the execution outcome for one spec.
type Result struct {
	SpecPath   string `json:"spec_path"`
	Phase      string `json:"phase"`
	Worker     int    `json:"worker"`
	Status     Status `json:"status"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Options configures a pool.
type Options struct {
	SpecTimeout  time.Duration
	SuiteTimeout time.Duration
	Commands     *CommandBuilder
}

// Pool runs plans.
type Pool struct {
	opts Options

	mu      sync.Mutex
	results []Result
}

// NewPool builds a pool with the given options.
func NewPool(opts Options) *Pool {
	if opts.SpecTimeout <= 0 {
		opts.SpecTimeout = 2 * time.Minute
	}
	if opts.SuiteTimeout <= 0 {
		opts.SuiteTimeout = 30 * time.Minute
	}
	return &Pool{opts: opts}
}

// Run executes every phase of the plan in order, sharding each phase
// across the plan's worker count. Workers stop picking up specs once
// the suite deadline passes; the remainder is recorded skipped.
// Cancellation of ctx (e.g. SIGINT) behaves the same way, so a report
// can still be written for whatever completed.
func (p *Pool) Run(ctx context.Context, plan *schedule.Plan) []Result {
	timer := logging.StartTimer(logging.CategoryRunner, "Run")
	defer timer.StopWithInfo()

	suiteCtx, cancel := context.WithTimeout(ctx, p.opts.SuiteTimeout)
	defer cancel()

	for _, phase := range plan.Phases {
		p.runPhase(suiteCtx, phase, plan.Workers)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, len(p.results))
	copy(out, p.results)
	return out
}

func (p *Pool) runPhase(ctx context.Context, phase schedule.Phase, workers int) {
	shards := schedule.ShardPhase(phase, workers)
	logging.Runner("Phase %s: %d specs across %d workers", phase.Name, len(phase.Specs), len(shards))

	var g errgroup.Group
	for _, shard := range shards {
		g.Go(func() error {
			p.runShard(ctx, phase.Name, shard)
			return nil
		})
	}
	// Workers never return errors; failures live in Results.
	_ = g.Wait()
}

func (p *Pool) runShard(ctx context.Context, phaseName string, shard schedule.Shard) {
	for _, planned := range shard.Specs {
		if ctx.Err() != nil {
			p.record(Result{
				SpecPath: planned.Spec.Path,
				Phase:    phaseName,
				Worker:   shard.Index,
				Status:   StatusSkipped,
				Error:    "suite deadline exceeded",
			})
			continue
		}
		p.record(p.runSpec(ctx, phaseName, shard.Index, planned.Spec.Path))
	}
}

// runSpec executes one spec subprocess under the per-spec timeout.
func (p *Pool) runSpec(ctx context.Context, phaseName string, worker int, specPath string) Result {
	res := Result{SpecPath: specPath, Phase: phaseName, Worker: worker}

	inv, err := p.opts.Commands.Build(specPath)
	if err != nil {
		res.Status = StatusFail
		res.Error = err.Error()
		return res
	}

	specCtx, cancel := context.WithTimeout(ctx, p.opts.SpecTimeout)
	defer cancel()

	cmd := exec.Command(inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)
	setupProcessGroup(cmd)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logging.RunnerDebug("worker %d: %v", worker, inv.Argv)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		res.Status = StatusFail
		res.Error = "spawn failed: " + err.Error()
		return res
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var runErr error
	select {
	case runErr = <-done:
	case <-specCtx.Done():
		if killErr := killProcessGroup(cmd); killErr != nil {
			logging.Get(logging.CategoryRunner).Warn("kill failed for %s: %v", specPath, killErr)
		}
		<-done // reap
		runErr = specCtx.Err()
	}

	res.DurationMs = time.Since(start).Milliseconds()
	res.Output = truncate(output.String())

	switch {
	case errors.Is(runErr, context.DeadlineExceeded):
		res.Status = StatusTimeout
		res.Error = "timeout after " + time.Since(start).Round(time.Millisecond).String()
	case errors.Is(runErr, context.Canceled):
		res.Status = StatusSkipped
		res.Error = "interrupted"
	case runErr == nil:
		res.Status = StatusPass
	default:
		res.Status = StatusFail
		res.Error = runErr.Error()
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
	}

	logging.Runner("worker %d: %s %s (%dms)", worker, res.Status, specPath, res.DurationMs)
	return res
}

func (p *Pool) record(res Result) {
	p.mu.Lock()
	p.results = append(p.results, res)
	p.mu.Unlock()
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n...[truncated]"
}
