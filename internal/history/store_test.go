package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/report"
	"gauntlet/internal/runner"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func makeReport(results ...runner.Result) *report.Report {
	rep := report.Aggregate(results, time.Now().Add(-time.Minute), time.Now())
	return rep
}

func TestOpen_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestRecordRunAndSpecStats(t *testing.T) {
	s := openTestStore(t)

	rep := makeReport(
		runner.Result{SpecPath: "a.test.js", Status: runner.StatusPass, DurationMs: 100},
		runner.Result{SpecPath: "b.test.js", Status: runner.StatusFail, DurationMs: 500},
	)
	require.NoError(t, s.RecordRun(rep))

	st, ok := s.SpecStats("a.test.js")
	require.True(t, ok)
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, 0, st.Failures)
	assert.InDelta(t, 100, st.MeanMs, 0.01)

	st, ok = s.SpecStats("b.test.js")
	require.True(t, ok)
	assert.Equal(t, 1, st.Failures)
}

func TestSpecStats_MeanAcrossRuns(t *testing.T) {
	s := openTestStore(t)

	for _, ms := range []int64{100, 200, 300} {
		rep := makeReport(runner.Result{SpecPath: "a.test.js", Status: runner.StatusPass, DurationMs: ms})
		require.NoError(t, s.RecordRun(rep))
	}

	st, ok := s.SpecStats("a.test.js")
	require.True(t, ok)
	assert.Equal(t, 3, st.Runs)
	assert.InDelta(t, 200, st.MeanMs, 0.01)
}

func TestSpecStats_UnknownSpec(t *testing.T) {
	s := openTestStore(t)
	_, ok := s.SpecStats("never-ran.test.js")
	assert.False(t, ok)
}

func TestRecordRun_SkippedSpecsNotRecorded(t *testing.T) {
	s := openTestStore(t)

	rep := makeReport(
		runner.Result{SpecPath: "ran.test.js", Status: runner.StatusPass, DurationMs: 50},
		runner.Result{SpecPath: "skipped.test.js", Status: runner.StatusSkipped},
	)
	require.NoError(t, s.RecordRun(rep))

	_, ok := s.SpecStats("skipped.test.js")
	assert.False(t, ok)
}

func TestFlakySpecs(t *testing.T) {
	s := openTestStore(t)

	// flaky.test.js: 2 failures out of 5. stable.test.js: all pass.
	// broken.test.js: all fail (not flaky, just broken).
	for i := 0; i < 5; i++ {
		status := runner.StatusPass
		if i < 2 {
			status = runner.StatusFail
		}
		rep := makeReport(
			runner.Result{SpecPath: "flaky.test.js", Status: status, DurationMs: 100},
			runner.Result{SpecPath: "stable.test.js", Status: runner.StatusPass, DurationMs: 100},
			runner.Result{SpecPath: "broken.test.js", Status: runner.StatusFail, DurationMs: 100},
		)
		require.NoError(t, s.RecordRun(rep))
	}

	flaky, err := s.FlakySpecs(3)
	require.NoError(t, err)
	require.Len(t, flaky, 1)
	assert.Equal(t, "flaky.test.js", flaky[0].Path)
	assert.Equal(t, 5, flaky[0].Runs)
	assert.Equal(t, 2, flaky[0].Failures)
	assert.InDelta(t, 0.4, flaky[0].FailureRate, 0.001)
}

func TestFlakySpecs_MinRunsFilter(t *testing.T) {
	s := openTestStore(t)

	rep := makeReport(runner.Result{SpecPath: "once.test.js", Status: runner.StatusFail, DurationMs: 10})
	require.NoError(t, s.RecordRun(rep))

	flaky, err := s.FlakySpecs(3)
	require.NoError(t, err)
	assert.Empty(t, flaky)
}

func TestReopen_PreservesData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	rep := makeReport(runner.Result{SpecPath: "a.test.js", Status: runner.StatusPass, DurationMs: 75})
	require.NoError(t, s.RecordRun(rep))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	st, ok := s2.SpecStats("a.test.js")
	require.True(t, ok)
	assert.Equal(t, 1, st.Runs)
	assert.InDelta(t, 75, st.MeanMs, 0.01)
}

func TestRecordRun_DuplicateRunID(t *testing.T) {
	s := openTestStore(t)

	rep := makeReport(runner.Result{SpecPath: "a.test.js", Status: runner.StatusPass, DurationMs: 10})
	require.NoError(t, s.RecordRun(rep))

	// Same primary key again must fail, not corrupt the store.
	err := s.RecordRun(rep)
	assert.Error(t, err)

	rep.RunID = uuid.NewString()
	assert.NoError(t, s.RecordRun(rep))
}
