// Package report aggregates runner results into a run report, writes
// the JSON report file, and renders the terminal summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"gauntlet/internal/logging"
	"gauntlet/internal/runner"
)

// SpecResult is a runner result annotated with its failure signature.
type SpecResult struct {
	runner.Result
	Signature Signature `json:"signature,omitempty"`
}

// WorkerSummary rolls up one worker's share of the run.
type WorkerSummary struct {
	Worker     int   `json:"worker"`
	Specs      int   `json:"specs"`
	DurationMs int64 `json:"duration_ms"`
}

// PhaseSummary rolls up one execution phase.
type PhaseSummary struct {
	Phase    string `json:"phase"`
	Total    int    `json:"total"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	TimedOut int    `json:"timed_out"`
	Skipped  int    `json:"skipped"`
}

// Report is the JSON document written after a run.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	WallTimeMs int64     `json:"wall_time_ms"`

	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	TimedOut int `json:"timed_out"`
	Skipped  int `json:"skipped"`

	Workers []WorkerSummary `json:"workers"`
	Phases  []PhaseSummary  `json:"phases"`
	Results []SpecResult    `json:"results"`
}

// Aggregate builds a report from raw results. The counting invariant
// holds by construction: total equals the sum of the four statuses.
func Aggregate(results []runner.Result, started, finished time.Time) *Report {
	rep := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  started,
		FinishedAt: finished,
		WallTimeMs: finished.Sub(started).Milliseconds(),
		Total:      len(results),
	}

	workers := make(map[int]*WorkerSummary)
	phases := make(map[string]*PhaseSummary)
	var phaseOrder []string

	for _, res := range results {
		switch res.Status {
		case runner.StatusPass:
			rep.Passed++
		case runner.StatusFail:
			rep.Failed++
		case runner.StatusTimeout:
			rep.TimedOut++
		case runner.StatusSkipped:
			rep.Skipped++
		}

		w, ok := workers[res.Worker]
		if !ok {
			w = &WorkerSummary{Worker: res.Worker}
			workers[res.Worker] = w
		}
		w.Specs++
		w.DurationMs += res.DurationMs

		ph, ok := phases[res.Phase]
		if !ok {
			ph = &PhaseSummary{Phase: res.Phase}
			phases[res.Phase] = ph
			phaseOrder = append(phaseOrder, res.Phase)
		}
		ph.Total++
		switch res.Status {
		case runner.StatusPass:
			ph.Passed++
		case runner.StatusFail:
			ph.Failed++
		case runner.StatusTimeout:
			ph.TimedOut++
		case runner.StatusSkipped:
			ph.Skipped++
		}

		rep.Results = append(rep.Results, SpecResult{
			Result:    res,
			Signature: Classify(res),
		})
	}

	for _, w := range workers {
		rep.Workers = append(rep.Workers, *w)
	}
	sort.Slice(rep.Workers, func(i, j int) bool {
		return rep.Workers[i].Worker < rep.Workers[j].Worker
	})

	for _, name := range phaseOrder {
		rep.Phases = append(rep.Phases, *phases[name])
	}

	return rep
}

// Ok reports whether every spec passed.
func (r *Report) Ok() bool {
	return r.Failed == 0 && r.TimedOut == 0
}

// WriteJSON writes the report file, creating parent directories.
func (r *Report) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logging.Report("Report written to %s (%d results)", path, len(r.Results))
	return nil
}

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")) // Grey
)

// Summary renders the terminal summary.
func (r *Report) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s finished in %s\n", r.RunID, time.Duration(r.WallTimeMs)*time.Millisecond)
	fmt.Fprintf(&b, "  %s  %s  %s  %s\n",
		passStyle.Render(fmt.Sprintf("%d passed", r.Passed)),
		failStyle.Render(fmt.Sprintf("%d failed", r.Failed)),
		warnStyle.Render(fmt.Sprintf("%d timed out", r.TimedOut)),
		dimStyle.Render(fmt.Sprintf("%d skipped", r.Skipped)),
	)

	for _, ph := range r.Phases {
		fmt.Fprintf(&b, "  phase %-16s %3d specs, %d failed\n", ph.Phase, ph.Total, ph.Failed+ph.TimedOut)
	}
	for _, w := range r.Workers {
		fmt.Fprintf(&b, "  worker %d: %d specs in %s\n",
			w.Worker, w.Specs, time.Duration(w.DurationMs)*time.Millisecond)
	}

	for _, res := range r.Results {
		if res.Status == runner.StatusPass {
			continue
		}
		line := fmt.Sprintf("  %-7s %s", res.Status, res.SpecPath)
		if res.Signature != "" {
			line += dimStyle.Render(" [" + string(res.Signature) + "]")
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}
