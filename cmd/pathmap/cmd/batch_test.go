package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathmap/internal/search"
	"github.com/Aman-CERP/pathmap/internal/solver"
	"github.com/Aman-CERP/pathmap/internal/validation"
)

func TestBatchCmd_FromFile(t *testing.T) {
	// Given: a queries file
	env := setupTestEnv(t)
	file := filepath.Join(env.workDir, "queries.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`queries:
  - start: a
    goal: d
    tolerance: 1
  - start: b
    goal: d
`), 0o644))

	// When: running the batch as JSON
	stdout, _, err := runCmd(t, "batch", "--file", file, "--json")

	// Then: one result per query, in order
	require.NoError(t, err)
	var results []search.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Start)
	assert.Equal(t, 3, results[0].Buckets.Count())
	assert.Equal(t, "b", results[1].Start)
	assert.Equal(t, 1, results[1].Buckets.Count())
}

func TestBatchCmd_FromConfig(t *testing.T) {
	// Given: queries in the project config
	env := setupTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.workDir, ".pathmap.yaml"), []byte(`queries:
  - start: c
    goal: d
`), 0o644))

	// When
	stdout, _, err := runCmd(t, "batch", "--summary", "--no-tui")

	// Then
	require.NoError(t, err)
	assert.Contains(t, stdout, " --- c -> d --- ")
	assert.Contains(t, stdout, "Length 2: 1 Possibilities")
}

func TestBatchCmd_FailedQueryDoesNotStopBatch(t *testing.T) {
	env := setupTestEnv(t)
	file := filepath.Join(env.workDir, "queries.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`queries:
  - start: d
    goal: a
  - start: a
    goal: d
`), 0o644))

	stdout, _, err := runCmd(t, "batch", "-f", file, "--no-tui")

	require.NoError(t, err)
	assert.Contains(t, stdout, "No path found (not_reachable)")
	assert.Contains(t, stdout, "a -> b -> d")
}

func TestBatchCmd_MissingFile(t *testing.T) {
	env := setupTestEnv(t)

	_, _, err := runCmd(t, "batch", "--file", filepath.Join(env.workDir, "missing.yaml"))

	assert.Error(t, err)
}

func TestBatchQueries_Precedence(t *testing.T) {
	configured := []validation.Query{{Start: "x", Goal: "y"}}

	got, err := batchQueries("", configured)
	require.NoError(t, err)
	assert.Equal(t, configured, got)

	got, err = batchQueries("", nil)
	require.NoError(t, err)
	assert.Equal(t, solver.DefaultQueries(), got)
}
