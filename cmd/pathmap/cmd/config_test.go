package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathmap/internal/config"
)

func TestConfigPath_UsesXDG(t *testing.T) {
	env := setupTestEnv(t)

	stdout, _, err := runCmd(t, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.home, "config", "pathmap", "config.yaml"), strings.TrimSpace(stdout))
}

func TestConfigInit_CreatesFile(t *testing.T) {
	// Given: no user config
	setupTestEnv(t)
	require.False(t, config.UserConfigExists())

	// When
	stdout, _, err := runCmd(t, "config", "init")

	// Then
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created user configuration")
	assert.True(t, config.UserConfigExists())
}

func TestConfigInit_ExistingWithoutForce(t *testing.T) {
	setupTestEnv(t)
	_, _, err := runCmd(t, "config", "init")
	require.NoError(t, err)

	stdout, _, err := runCmd(t, "config", "init")

	require.NoError(t, err)
	assert.Contains(t, stdout, "already exists")
}

func TestConfigInit_ForceKeepsSettingsAndBacksUp(t *testing.T) {
	// Given: a user config with a custom tolerance and nothing else
	setupTestEnv(t)
	path := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("search:\n  tolerance: 2\n"), 0o644))

	// When
	stdout, _, err := runCmd(t, "config", "init", "--force")

	// Then: the setting survives, defaults are filled in, and a backup exists
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration upgraded")

	cfg, err := readConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Search.Tolerance)
	assert.Equal(t, config.NewConfig().Search.Workers, cfg.Search.Workers)

	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigRestore_Newest(t *testing.T) {
	// Given: a backed-up config that was then overwritten
	setupTestEnv(t)
	path := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("search:\n  tolerance: 3\n"), 0o644))
	_, _, err := runCmd(t, "config", "init", "--force")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("search:\n  tolerance: 5\n"), 0o644))

	// When
	stdout, _, err := runCmd(t, "config", "restore")

	// Then
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration restored")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "search:\n  tolerance: 3\n", string(data))
}

func TestConfigRestore_NoBackups(t *testing.T) {
	setupTestEnv(t)

	stdout, _, err := runCmd(t, "config", "restore")

	require.NoError(t, err)
	assert.Contains(t, stdout, "No configuration backups found")
}

func TestConfigShow_MergedJSON(t *testing.T) {
	// Given: env overrides from the test environment
	setupTestEnv(t)
	t.Setenv("PATHMAP_TOLERANCE", "2")

	// When
	stdout, _, err := runCmd(t, "config", "show", "--json")

	// Then
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, 2, cfg.Search.Tolerance)
	assert.Equal(t, "file", cfg.Provider.Kind)
	assert.Equal(t, "file", cfg.Store.Backend)
}

func TestConfigShow_Defaults(t *testing.T) {
	setupTestEnv(t)

	stdout, _, err := runCmd(t, "config", "show", "--source", "defaults")

	require.NoError(t, err)
	assert.Contains(t, stdout, "defaults (hardcoded)")
	assert.Contains(t, stdout, "musicmap")
}

func TestConfigShow_ProjectMissing(t *testing.T) {
	setupTestEnv(t)

	stdout, _, err := runCmd(t, "config", "show", "--source", "project")

	require.NoError(t, err)
	assert.Contains(t, stdout, "No project configuration file found")
}

func TestConfigShow_InvalidSource(t *testing.T) {
	setupTestEnv(t)

	_, _, err := runCmd(t, "config", "show", "--source", "nope")

	assert.Error(t, err)
}
