package preflight

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsCheck_NoMarker(t *testing.T) {
	assert.True(t, NeedsCheck(t.TempDir(), "1.0.0"))
}

func TestNeedsCheck_SameVersion(t *testing.T) {
	// Given: a marker written by this version
	dir := t.TempDir()
	require.NoError(t, MarkPassed(dir, "1.0.0"))

	// Then
	assert.False(t, NeedsCheck(dir, "1.0.0"))
}

func TestNeedsCheck_OtherVersion(t *testing.T) {
	// Given: a marker written by an older version
	dir := t.TempDir()
	require.NoError(t, MarkPassed(dir, "0.9.0"))

	// Then: the upgrade is checked again
	assert.True(t, NeedsCheck(dir, "1.0.0"))
}

func TestNeedsCheck_GarbledMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarkerFile), []byte("2024-01-01T00:00:00Z"), 0o644))

	assert.True(t, NeedsCheck(dir, "1.0.0"))
}

func TestMarkPassed_CreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "subdir", ".pathmap")

	require.NoError(t, MarkPassed(dataDir, "dev"))

	assert.FileExists(t, filepath.Join(dataDir, MarkerFile))
}

func TestClearMarker(t *testing.T) {
	// Given: a marker
	dir := t.TempDir()
	require.NoError(t, MarkPassed(dir, "dev"))

	// When
	require.NoError(t, ClearMarker(dir))

	// Then: removed, and clearing again is fine
	assert.NoFileExists(t, filepath.Join(dir, MarkerFile))
	assert.NoError(t, ClearMarker(dir))
}

func TestMarkerAge(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, time.Duration(0), MarkerAge(dir))

	require.NoError(t, MarkPassed(dir, "dev"))
	assert.Less(t, MarkerAge(dir), 2*time.Second)
}
