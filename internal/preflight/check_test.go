package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathmap/internal/provider"
	"github.com/Aman-CERP/pathmap/internal/store"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONStatusIsText(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "disk_space", Status: StatusWarn})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"WARN"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail, Required: false}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_NewWithOptions(t *testing.T) {
	buf := &bytes.Buffer{}
	checker := New(
		WithOffline(true),
		WithVerbose(true),
		WithOutput(buf),
	)

	assert.True(t, checker.offline)
	assert.True(t, checker.verbose)
	assert.Equal(t, buf, checker.output)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New()

	assert.False(t, checker.HasCriticalFailures(nil))
	assert.False(t, checker.HasCriticalFailures([]CheckResult{
		{Status: StatusPass, Required: true},
		{Status: StatusFail, Required: false},
	}))
	assert.True(t, checker.HasCriticalFailures([]CheckResult{
		{Status: StatusPass, Required: true},
		{Status: StatusFail, Required: true},
	}))
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"with warnings", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"with critical failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail, Required: true}}, "failed"},
		{"with optional failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail}}, "ready_with_warnings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}

func TestChecker_CheckWritePermissions_CreatesDir(t *testing.T) {
	// Given: a data directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "nested", ".pathmap")

	// When
	result := New().CheckWritePermissions(dir)

	// Then
	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
	assert.DirExists(t, dir)
	assert.NoFileExists(t, filepath.Join(dir, ".pathmap-preflight-test"))
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0o555))
	defer func() { _ = os.Chmod(readOnlyDir, 0o755) }()

	result := New().CheckWritePermissions(readOnlyDir)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckDiskSpace_MissingPathUsesParent(t *testing.T) {
	result := New().CheckDiskSpace(filepath.Join(t.TempDir(), "not", "yet"))

	assert.NotEqual(t, StatusFail, result.Status, result.Message)
	assert.Contains(t, result.Message, "free")
}

func TestRequiredDescriptors(t *testing.T) {
	assert.Equal(t, uint64(MinFileDescriptors), RequiredDescriptors(4))
	assert.Equal(t, uint64(1000*2+reservedDescriptors), RequiredDescriptors(1000))
	assert.Equal(t, uint64(MinFileDescriptors), RequiredDescriptors(-1))
}

func TestChecker_CheckStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "map.dat")
	cfg := store.Config{Backend: store.BackendFile, Path: path}
	checker := New()

	// Given: no store yet
	result := checker.CheckStore(ctx, cfg)
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "new store")

	// Given: an existing, unlocked store
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	result = checker.CheckStore(ctx, cfg)
	assert.Equal(t, StatusPass, result.Status)

	// Given: a store held by someone else
	held, err := store.AcquireLock(ctx, path+".lock", time.Second)
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	result = checker.CheckStore(ctx, cfg)
	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
}

func TestChecker_CheckProvider_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: [b]\nb: []\n"), 0o644))
	checker := New()

	result := checker.CheckProvider(context.Background(), provider.Config{Kind: provider.KindFile, GraphFile: path}, "")
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "2 nodes")

	result = checker.CheckProvider(context.Background(), provider.Config{Kind: provider.KindFile, GraphFile: path + ".missing"}, "")
	assert.True(t, result.IsCritical())
}

func TestChecker_CheckProvider_Offline(t *testing.T) {
	cfg := provider.DefaultConfig()

	result := New(WithOffline(true)).CheckProvider(context.Background(), cfg, "")

	assert.Equal(t, StatusWarn, result.Status)
	assert.Equal(t, "skipped (offline)", result.Message)
}

func TestChecker_CheckProvider_MusicMap(t *testing.T) {
	// Given: a music-map server that knows one artist
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mozart" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body><div id="gnodMap"><a href="bach">Bach</a><a href="haydn">Haydn</a></div></body></html>`))
	}))
	defer srv.Close()

	cfg := provider.DefaultConfig()
	cfg.BaseURL = srv.URL
	checker := New()

	// When: fetching a known artist
	result := checker.CheckProvider(context.Background(), cfg, "mozart")

	// Then
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "fetched 2 neighbors of mozart", result.Message)

	// When: fetching an unknown artist
	result = checker.CheckProvider(context.Background(), cfg, "nobody")

	// Then: a warning, never critical
	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
}

func TestChecker_RunAll(t *testing.T) {
	// Given: a file-backed target
	dir := t.TempDir()
	graphFile := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(graphFile, []byte("a: [b]\n"), 0o644))
	target := Target{
		DataDir:  filepath.Join(dir, "data"),
		Workers:  4,
		Store:    store.Config{Backend: store.BackendFile, Path: filepath.Join(dir, "data", "map.dat")},
		Provider: provider.Config{Kind: provider.KindFile, GraphFile: graphFile},
	}

	// When
	results := New().RunAll(context.Background(), target)

	// Then: every check ran
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"disk_space", "write_permissions", "file_descriptors", "graph_store", "provider"} {
		assert.True(t, names[want], "%s check missing", want)
	}
}

func TestChecker_PrintResults(t *testing.T) {
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GB free"},
		{Name: "provider", Status: StatusWarn, Message: "skipped (offline)", Details: "Base URL: x"},
		{Name: "graph_store", Status: StatusFail, Message: "broken", Required: true},
	}
	buf := &bytes.Buffer{}

	New(WithOutput(buf), WithVerbose(true)).PrintResults(results)

	out := buf.String()
	assert.Contains(t, out, "pathmap System Check")
	assert.Contains(t, out, "[PASS] disk_space: 50 GB free")
	assert.Contains(t, out, "[WARN] provider")
	assert.Contains(t, out, "      Base URL: x")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):")
	assert.Contains(t, out, "1 warning(s):")
}
