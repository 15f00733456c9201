package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathmap/internal/preflight"
	"github.com/Aman-CERP/pathmap/pkg/version"
)

func TestDoctorCmd_Text(t *testing.T) {
	// Given: a file provider and no store yet
	env := setupTestEnv(t)

	// When
	stdout, _, err := runCmd(t, "doctor", "--verbose")

	// Then: checks pass and the marker is written
	require.NoError(t, err)
	assert.Contains(t, stdout, "pathmap System Check")
	assert.Contains(t, stdout, "[PASS] provider")
	assert.Contains(t, stdout, "[PASS] graph_store")
	assert.False(t, preflight.NeedsCheck(env.home, version.Version))
}

func TestDoctorCmd_JSON(t *testing.T) {
	setupTestEnv(t)

	stdout, _, err := runCmd(t, "doctor", "--json")
	require.NoError(t, err)

	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.NotEqual(t, "failed", report.Status)
	assert.Len(t, report.Checks, 5)
}

func TestDoctorCmd_MissingGraphFileFails(t *testing.T) {
	// Given: the graph file was removed after config was written
	env := setupTestEnv(t)
	t.Setenv("PATHMAP_GRAPH_FILE", env.workDir+"/missing.yaml")

	// When
	stdout, _, err := runCmd(t, "doctor")

	// Then
	require.Error(t, err)
	assert.Contains(t, stdout, "[FAIL] provider")
	assert.True(t, preflight.NeedsCheck(env.home, version.Version))
}
