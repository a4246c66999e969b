// Package estimate implements the heuristic per-spec cost model.
//
// Costs are rough millisecond predictions used only for ordering and
// sharding. When the history store has recorded timings for a spec the
// heuristic is blended toward the observed mean.
package estimate

import (
	"math"
	"strings"

	"gauntlet/internal/discover"
)

// Base cost per kind, in milliseconds.
var baseCost = map[discover.Kind]float64{
	discover.KindUnit:          800,
	discover.KindComponent:     1500,
	discover.KindAccessibility: 2500,
	discover.KindIntegration:   4000,
	discover.KindE2E:           15000,
}

// Path keyword multipliers. Auth flows and store-backed specs run
// against more setup and teardown than plain render tests.
var keywordFactor = []struct {
	keyword string
	factor  float64
}{
	{"auth", 1.5},
	{"store", 1.3},
	{"state", 1.3},
	{"hook", 1.2},
}

// Stats is the slice of history the estimator consumes.
type Stats struct {
	Runs     int
	Failures int
	// Mean observed duration in milliseconds
	MeanMs float64
}

// HistoryProvider supplies recorded stats for a spec path.
// Implemented by history.Store; an interface here keeps estimate free
// of the sqlite dependency and usable with a nil provider.
type HistoryProvider interface {
	SpecStats(path string) (Stats, bool)
}

// Estimator computes deterministic cost estimates.
type Estimator struct {
	History      HistoryProvider
	FlakyMinRuns int
}

// New returns an estimator. history may be nil.
func New(history HistoryProvider, flakyMinRuns int) *Estimator {
	if flakyMinRuns <= 0 {
		flakyMinRuns = 3
	}
	return &Estimator{History: history, FlakyMinRuns: flakyMinRuns}
}

// Cost returns the estimated duration of a spec in milliseconds.
// Always >= 100 and deterministic for fixed inputs.
func (e *Estimator) Cost(spec discover.SpecFile) int64 {
	cost := baseCost[spec.Kind]
	if cost == 0 {
		cost = baseCost[discover.KindUnit]
	}

	cost *= sizeFactor(spec.Size)

	lower := strings.ToLower(spec.Path)
	for _, kf := range keywordFactor {
		if strings.Contains(lower, kf.keyword) {
			cost *= kf.factor
		}
	}

	if e.History != nil {
		if st, ok := e.History.SpecStats(spec.Path); ok && st.Runs > 0 && st.MeanMs > 0 {
			// Observed timings dominate once they exist.
			cost = 0.7*st.MeanMs + 0.3*cost

			if e.isFlaky(st) {
				// Retry allowance: flaky specs tend to run more than once.
				cost *= 1.5
			}
		}
	}

	if cost < 100 {
		cost = 100
	}
	return int64(math.Round(cost))
}

// sizeFactor scales cost by file size, log-curved and capped so one
// giant fixture file cannot dominate a shard estimate.
func sizeFactor(size int64) float64 {
	if size <= 0 {
		return 1.0
	}
	f := 1.0 + 0.25*math.Log2(1.0+float64(size)/8192.0)
	if f > 3.0 {
		f = 3.0
	}
	return f
}

// isFlaky reports whether the stats describe intermittent failure:
// enough runs, and a failure rate that is neither ~0 nor ~1.
func (e *Estimator) isFlaky(st Stats) bool {
	if st.Runs < e.FlakyMinRuns {
		return false
	}
	rate := float64(st.Failures) / float64(st.Runs)
	return rate >= 0.05 && rate < 0.95
}
