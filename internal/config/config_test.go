package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gauntlet", cfg.Name)
	assert.GreaterOrEqual(t, cfg.Execution.Workers, 1)
	assert.LessOrEqual(t, cfg.Execution.Workers, 4)
	assert.NotEmpty(t, cfg.Discovery.Patterns)
	assert.Contains(t, cfg.Discovery.Ignore, "node_modules")
	assert.Equal(t, "HEAD", cfg.Impact.BaseRef)
	assert.Equal(t, 2*time.Minute, cfg.GetSpecTimeout())
	assert.Equal(t, 30*time.Minute, cfg.GetSuiteTimeout())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gauntlet", cfg.Name)
}

func TestLoad_PartialYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
execution:
  workers: 8
  spec_timeout: 45s
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Execution.Workers)
	assert.Equal(t, 45*time.Second, cfg.GetSpecTimeout())
	// Untouched sections keep their defaults.
	assert.Equal(t, "HEAD", cfg.Impact.BaseRef)
	assert.NotEmpty(t, cfg.Discovery.Patterns)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("execution: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GAUNTLET_WORKERS", "12")
	t.Setenv("GAUNTLET_SPEC_TIMEOUT", "90s")
	t.Setenv("GAUNTLET_BROWSER", "chrome")
	t.Setenv("GAUNTLET_DB", "/tmp/alt-history.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Execution.Workers)
	assert.Equal(t, 90*time.Second, cfg.GetSpecTimeout())
	assert.Equal(t, "chrome", cfg.Execution.Browser)
	assert.Equal(t, "/tmp/alt-history.db", cfg.History.DatabasePath)
}

func TestEnvOverrides_InvalidWorkersIgnored(t *testing.T) {
	t.Setenv("GAUNTLET_WORKERS", "zero")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Execution.Workers, cfg.Execution.Workers)
}

func TestTimeouts_InvalidFallBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Execution.SpecTimeout = "not-a-duration"
	cfg.Execution.SuiteTimeout = "-5m"

	assert.Equal(t, 2*time.Minute, cfg.GetSpecTimeout())
	assert.Equal(t, 30*time.Minute, cfg.GetSuiteTimeout())
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gauntlet", "config.yaml")

	cfg := DefaultConfig()
	cfg.Execution.Workers = 2
	cfg.Execution.Command = "yarn test"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Execution.Workers)
	assert.Equal(t, "yarn test", loaded.Execution.Command)
}

func TestLoadWorkspace(t *testing.T) {
	workspace := t.TempDir()
	cfg := DefaultConfig()
	cfg.Execution.Workers = 3
	require.NoError(t, cfg.Save(filepath.Join(workspace, ".gauntlet", "config.yaml")))

	loaded, err := LoadWorkspace(workspace)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Execution.Workers)
}
