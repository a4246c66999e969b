package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/discover"
	"gauntlet/internal/impact"
	"gauntlet/internal/schedule"
)

func TestRestrictToImpacted(t *testing.T) {
	specs := []discover.SpecFile{
		{Path: "a.test.ts"},
		{Path: "b.test.ts"},
		{Path: "c.test.ts"},
	}
	impacted := []impact.ImpactedSpec{
		{Spec: discover.SpecFile{Path: "c.test.ts"}, Priority: impact.PriorityHigh},
		{Spec: discover.SpecFile{Path: "a.test.ts"}, Priority: impact.PriorityMedium},
	}

	got := restrictToImpacted(specs, impacted)
	// Discovery order is preserved, not impact order.
	require.Len(t, got, 2)
	assert.Equal(t, "a.test.ts", got[0].Path)
	assert.Equal(t, "c.test.ts", got[1].Path)
}

func TestRestrictToImpacted_NothingImpacted(t *testing.T) {
	specs := []discover.SpecFile{{Path: "a.test.ts"}}
	assert.Empty(t, restrictToImpacted(specs, nil))
}

func TestRenderPlan(t *testing.T) {
	plan := &schedule.Plan{
		Workers: 2,
		Phases: []schedule.Phase{
			{
				Name: "impacted-high",
				Specs: []schedule.PlannedSpec{
					{
						Spec:     discover.SpecFile{Path: "auth.test.ts", Kind: discover.KindUnit},
						CostMs:   800,
						Priority: impact.PriorityHigh,
						Reason:   "source changed",
					},
				},
			},
			{
				Name: "remainder",
				Specs: []schedule.PlannedSpec{
					{Spec: discover.SpecFile{Path: "cart.test.ts", Kind: discover.KindUnit}, CostMs: 500},
				},
			},
		},
	}

	out := renderPlan(plan)
	assert.Contains(t, out, "2 specs, 2 phases, 2 workers")
	assert.Contains(t, out, "Phase impacted-high")
	assert.Contains(t, out, "Phase remainder")
	assert.Contains(t, out, "auth.test.ts")
	assert.Contains(t, out, "[high: source changed]")
	assert.Contains(t, out, "cart.test.ts")
}

func TestNewPipeline_DefaultsInEmptyWorkspace(t *testing.T) {
	ws := t.TempDir()

	p, err := newPipeline(ws)
	require.NoError(t, err)
	defer p.close()

	assert.NotNil(t, p.cfg)
	assert.NotNil(t, p.est)
	assert.NotNil(t, p.hist, "history store should open in a writable workspace")

	// The store lands at the configured workspace-relative path.
	_, statErr := os.Stat(filepath.Join(ws, ".gauntlet", "history.db"))
	assert.NoError(t, statErr)
}

func TestPipeline_DiscoverUsesConfiguredPatterns(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "components"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "components", "Button.test.tsx"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "components", "Button.tsx"), []byte("x"), 0644))

	p, err := newPipeline(ws)
	require.NoError(t, err)
	defer p.close()

	specs, err := p.discoverSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "components/Button.test.tsx", specs[0].Path)
}
