package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func busyWork() int {
	sum := 0
	for i := 0; i < 1000000; i++ {
		sum += i
	}
	return sum
}

func assertNonEmpty(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Mem: "heap.prof"}.Enabled())
}

func TestSession_AllProfiles(t *testing.T) {
	// Given
	dir := t.TempDir()
	cfg := Config{
		CPU:   filepath.Join(dir, "cpu.prof"),
		Mem:   filepath.Join(dir, "heap.prof"),
		Trace: filepath.Join(dir, "trace.out"),
	}

	// When
	s, err := Start(cfg)
	require.NoError(t, err)
	_ = busyWork()
	require.NoError(t, s.Stop())

	// Then
	assertNonEmpty(t, cfg.CPU)
	assertNonEmpty(t, cfg.Mem)
	assertNonEmpty(t, cfg.Trace)

	// And: Stop again is harmless
	assert.NoError(t, s.Stop())
}

func TestSession_NothingRequested(t *testing.T) {
	s, err := Start(Config{})
	require.NoError(t, err)
	assert.NoError(t, s.Stop())

	var nilSession *Session
	assert.NoError(t, nilSession.Stop())
}

func TestStart_BadPath(t *testing.T) {
	_, err := Start(Config{CPU: filepath.Join(t.TempDir(), "missing", "cpu.prof")})
	assert.Error(t, err)
}

func TestStart_BadTracePathStopsCPU(t *testing.T) {
	dir := t.TempDir()

	_, err := Start(Config{CPU: filepath.Join(dir, "cpu.prof"), Trace: filepath.Join(dir, "missing", "trace.out")})
	require.Error(t, err)

	// Then: CPU profiling was released and can start again
	s, err := Start(Config{CPU: filepath.Join(dir, "cpu2.prof")})
	require.NoError(t, err)
	require.NoError(t, s.Stop())
}

func TestWriteHeap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")

	require.NoError(t, WriteHeap(path))

	assertNonEmpty(t, path)
}

func TestMemStats(t *testing.T) {
	m := MemStats()
	assert.Greater(t, m.Sys, uint64(0))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.bytes))
	}
}
