// Package schedule turns discovered specs into prioritized phases and
// balanced worker shards.
package schedule

import (
	"sort"

	"gauntlet/internal/discover"
	"gauntlet/internal/estimate"
	"gauntlet/internal/impact"
	"gauntlet/internal/logging"
)

// PlannedSpec is a spec with its cost estimate and impact provenance.
type PlannedSpec struct {
	Spec   discover.SpecFile
	CostMs int64
	// Empty when the spec was not selected by the diff
	Priority impact.Priority
	Reason   string
}

// Phase is an ordered batch of specs run to completion before the next
// phase starts.
type Phase struct {
	Name  string
	Specs []PlannedSpec
}

// Shard is the slice of a phase assigned to one worker.
type Shard struct {
	Index       int
	Specs       []PlannedSpec
	EstimatedMs int64
}

// Plan is the full execution plan for a run.
type Plan struct {
	Phases  []Phase
	Workers int
}

// kindOrder runs cheap fast-feedback layers before the expensive ones.
var kindOrder = map[discover.Kind]int{
	discover.KindUnit:          0,
	discover.KindComponent:     1,
	discover.KindAccessibility: 2,
	discover.KindIntegration:   3,
	discover.KindE2E:           4,
}

// Partition buckets specs into execution phases. With impact data the
// phases are: high-priority impacted, medium-priority impacted, then
// everything else. Without it, a single phase holds all specs ordered
// by kind then ascending cost.
func Partition(specs []discover.SpecFile, impacted []impact.ImpactedSpec, est *estimate.Estimator) []Phase {
	timer := logging.StartTimer(logging.CategorySchedule, "Partition")
	defer timer.Stop()

	planned := make(map[string]PlannedSpec, len(specs))
	for _, s := range specs {
		planned[s.Path] = PlannedSpec{Spec: s, CostMs: est.Cost(s)}
	}
	for _, is := range impacted {
		p, ok := planned[is.Spec.Path]
		if !ok {
			continue
		}
		p.Priority = is.Priority
		p.Reason = is.Reason
		planned[is.Spec.Path] = p
	}

	var high, medium, rest []PlannedSpec
	for _, s := range specs {
		p := planned[s.Path]
		switch p.Priority {
		case impact.PriorityHigh:
			high = append(high, p)
		case impact.PriorityMedium:
			medium = append(medium, p)
		default:
			rest = append(rest, p)
		}
	}

	sortCheapestFirst(high)
	sortCheapestFirst(medium)
	sortCheapestFirst(rest)

	var phases []Phase
	if len(impacted) == 0 {
		if len(rest) > 0 {
			phases = append(phases, Phase{Name: "all", Specs: rest})
		}
		logging.Schedule("Partitioned %d specs into a single phase (no diff info)", len(specs))
		return phases
	}

	if len(high) > 0 {
		phases = append(phases, Phase{Name: "impacted-high", Specs: high})
	}
	if len(medium) > 0 {
		phases = append(phases, Phase{Name: "impacted-medium", Specs: medium})
	}
	if len(rest) > 0 {
		phases = append(phases, Phase{Name: "remainder", Specs: rest})
	}

	logging.Schedule("Partitioned %d specs into %d phases (high=%d medium=%d rest=%d)",
		len(specs), len(phases), len(high), len(medium), len(rest))
	return phases
}

// sortCheapestFirst orders by kind tier, then ascending cost, then
// path for a deterministic plan.
func sortCheapestFirst(specs []PlannedSpec) {
	sort.Slice(specs, func(i, j int) bool {
		ki, kj := kindOrder[specs[i].Spec.Kind], kindOrder[specs[j].Spec.Kind]
		if ki != kj {
			return ki < kj
		}
		if specs[i].CostMs != specs[j].CostMs {
			return specs[i].CostMs < specs[j].CostMs
		}
		return specs[i].Spec.Path < specs[j].Spec.Path
	})
}

// Shard distributes a phase across at most workers shards using LPT
// greedy assignment: heaviest spec first, onto the lightest shard.
// Empty shards are dropped, so the result may be shorter than workers.
func ShardPhase(phase Phase, workers int) []Shard {
	if workers < 1 {
		workers = 1
	}

	ordered := make([]PlannedSpec, len(phase.Specs))
	copy(ordered, phase.Specs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].CostMs != ordered[j].CostMs {
			return ordered[i].CostMs > ordered[j].CostMs
		}
		return ordered[i].Spec.Path < ordered[j].Spec.Path
	})

	shards := make([]Shard, workers)
	for i := range shards {
		shards[i].Index = i
	}

	for _, spec := range ordered {
		lightest := 0
		for i := 1; i < len(shards); i++ {
			if shards[i].EstimatedMs < shards[lightest].EstimatedMs {
				lightest = i
			}
		}
		shards[lightest].Specs = append(shards[lightest].Specs, spec)
		shards[lightest].EstimatedMs += spec.CostMs
	}

	out := shards[:0]
	for _, sh := range shards {
		if len(sh.Specs) > 0 {
			out = append(out, sh)
		}
	}
	logging.ScheduleDebug("Phase %s sharded into %d/%d workers", phase.Name, len(out), workers)
	return out
}

// Build produces the complete plan for a run.
func Build(specs []discover.SpecFile, impacted []impact.ImpactedSpec, est *estimate.Estimator, workers int) *Plan {
	return &Plan{
		Phases:  Partition(specs, impacted, est),
		Workers: workers,
	}
}

// TotalSpecs counts every planned spec across phases.
func (p *Plan) TotalSpecs() int {
	total := 0
	for _, ph := range p.Phases {
		total += len(ph.Specs)
	}
	return total
}
