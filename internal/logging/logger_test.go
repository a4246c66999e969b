package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reset clears package state so each test starts from a cold boot.
func reset() {
	CloseAll()
	configMu.Lock()
	config = loggingConfig{}
	logLevel = LevelInfo
	configMu.Unlock()
	logsDir = ""
	workspace = ""
}

func writeConfig(t *testing.T, ws, body string) {
	t.Helper()
	dir := filepath.Join(ws, ".gauntlet")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
}

func TestInitialize_NoConfigIsSilent(t *testing.T) {
	defer reset()
	ws := t.TempDir()

	require.NoError(t, Initialize(ws))
	assert.False(t, IsDebugMode())

	// Production mode must not create a logs directory.
	_, err := os.Stat(filepath.Join(ws, ".gauntlet", "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestInitialize_EmptyWorkspace(t *testing.T) {
	defer reset()
	assert.Error(t, Initialize(""))
}

func TestInitialize_DebugModeWritesFiles(t *testing.T) {
	defer reset()
	ws := t.TempDir()
	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: debug\n")

	require.NoError(t, Initialize(ws))
	assert.True(t, IsDebugMode())

	Discover("found %d specs", 7)
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".gauntlet", "logs"))
	require.NoError(t, err)

	var discoverLog string
	for _, e := range entries {
		if strings.Contains(e.Name(), "discover") {
			discoverLog = filepath.Join(ws, ".gauntlet", "logs", e.Name())
		}
	}
	require.NotEmpty(t, discoverLog, "expected a discover log file")

	data, err := os.ReadFile(discoverLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "found 7 specs")
}

func TestCategoryDisabled(t *testing.T) {
	defer reset()
	ws := t.TempDir()
	writeConfig(t, ws, `logging:
  debug_mode: true
  categories:
    runner: false
`)

	require.NoError(t, Initialize(ws))
	assert.False(t, IsCategoryEnabled(CategoryRunner))
	// Unlisted categories default to enabled in debug mode.
	assert.True(t, IsCategoryEnabled(CategoryImpact))

	// Logging to a disabled category is a no-op, not a crash.
	Runner("should go nowhere")
}

func TestLevelFiltering(t *testing.T) {
	defer reset()
	ws := t.TempDir()
	writeConfig(t, ws, "logging:\n  debug_mode: true\n  level: warn\n")

	require.NoError(t, Initialize(ws))

	l := Get(CategorySchedule)
	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".gauntlet", "logs"))
	require.NoError(t, err)

	for _, e := range entries {
		if !strings.Contains(e.Name(), "schedule") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(ws, ".gauntlet", "logs", e.Name()))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "debug line")
		assert.NotContains(t, string(data), "info line")
		assert.Contains(t, string(data), "warn line")
	}
}

func TestConvenienceFuncsSafeWithoutInitialize(t *testing.T) {
	defer reset()
	reset()

	// None of these may panic before Initialize runs.
	Boot("boot")
	Impact("impact")
	History("history")
	StartTimer(CategoryReport, "noop").Stop()
}
