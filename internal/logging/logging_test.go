package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultDataDir_HonoursEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DataDirEnv, dir)

	if got := DefaultDataDir(); got != dir {
		t.Errorf("DefaultDataDir = %s, want %s", got, dir)
	}
	if got := DefaultLogPath(); got != filepath.Join(dir, "logs", "pathmap.log") {
		t.Errorf("DefaultLogPath = %s", got)
	}
}

func TestDefaultLogDir(t *testing.T) {
	t.Setenv(DataDirEnv, "")

	dir := DefaultLogDir()
	if !strings.Contains(dir, ".pathmap") || filepath.Base(dir) != "logs" {
		t.Errorf("DefaultLogDir should end with .pathmap/logs, got: %s", dir)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 {
		t.Errorf("expected MaxSizeMB 10, got: %d", cfg.MaxSizeMB)
	}
	if cfg.MaxFiles != 5 {
		t.Errorf("expected MaxFiles 5, got: %d", cfg.MaxFiles)
	}
	if cfg.WriteToStderr {
		t.Error("expected WriteToStderr to be false")
	}
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()

	if cfg.Level != "debug" {
		t.Errorf("expected level 'debug', got: %s", cfg.Level)
	}
	if !cfg.WriteToStderr {
		t.Error("debug mode should mirror to stderr")
	}
}

func TestServeConfig_NeverWritesStderr(t *testing.T) {
	cfg := ServeConfig("debug")

	if cfg.WriteToStderr {
		t.Error("serve mode must not write to stderr")
	}
	if cfg.Level != "debug" {
		t.Errorf("expected level 'debug', got: %s", cfg.Level)
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, cleanup, err := Setup(Config{
		Level:     "debug",
		FilePath:  logPath,
		MaxSizeMB: 1,
		MaxFiles:  3,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Debug("search_started", "start", "mozart")
	cleanup()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	entry := ParseLine(strings.TrimSpace(string(data)))
	if !entry.IsValid {
		t.Fatalf("log line is not JSON: %q", data)
	}
	if entry.Msg != "search_started" || entry.Attrs["start"] != "mozart" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestSetup_LevelFilters(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: logPath, MaxSizeMB: 1, MaxFiles: 1})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	cleanup()

	data, _ := os.ReadFile(logPath)
	if strings.Contains(string(data), "dropped") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("warn record missing")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"INFO", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"nonsense", "INFO"},
	}

	for _, tt := range tests {
		if got := LevelFromString(tt.input).String(); got != tt.expected {
			t.Errorf("LevelFromString(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestValidLevel(t *testing.T) {
	for _, l := range []string{"debug", "info", "WARN", "warning", "error"} {
		if !ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = false", l)
		}
	}
	if ValidLevel("trace") {
		t.Error("trace should not be a valid level")
	}
}

func TestFindLogFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DataDirEnv, dir)

	if _, err := FindLogFile(""); err == nil {
		t.Error("expected error when no log exists")
	}

	explicit := filepath.Join(dir, "explicit.log")
	if err := os.WriteFile(explicit, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FindLogFile(explicit)
	if err != nil || got != explicit {
		t.Errorf("FindLogFile(explicit) = %s, %v", got, err)
	}

	if err := EnsureLogDir(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(DefaultLogPath(), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = FindLogFile("")
	if err != nil || got != DefaultLogPath() {
		t.Errorf("FindLogFile(\"\") = %s, %v", got, err)
	}
}

// ============================================================================
// Viewer Tests
// ============================================================================

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseLine(t *testing.T) {
	entry := ParseLine(`{"time":"2026-01-02T03:04:05.5Z","level":"INFO","msg":"solve_completed","paths":2}`)

	if !entry.IsValid {
		t.Fatal("expected valid entry")
	}
	if entry.Level != "INFO" || entry.Msg != "solve_completed" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Attrs["paths"] != float64(2) {
		t.Errorf("expected paths attr, got %v", entry.Attrs)
	}
	if _, ok := entry.Attrs["msg"]; ok {
		t.Error("standard fields should not appear in attrs")
	}

	bad := ParseLine("not json")
	if bad.IsValid || bad.Raw != "not json" {
		t.Errorf("unexpected invalid entry: %+v", bad)
	}
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, nil)
	entry := ParseLine(`{"time":"2026-01-02T03:04:05.5Z","level":"WARN","msg":"fetch_failed","node":"mozart","code":"ERR_602"}`)

	got := v.FormatEntry(entry)
	want := "03:04:05.500 WARN  fetch_failed code=ERR_602 node=mozart"
	if got != want {
		t.Errorf("FormatEntry = %q, want %q", got, want)
	}

	if raw := v.FormatEntry(ParseLine("plain text")); raw != "plain text" {
		t.Errorf("invalid lines should be returned raw, got %q", raw)
	}
}

func TestViewer_Tail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tail.log")
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf(`{"time":"2026-01-02T03:04:05Z","level":"INFO","msg":"line_%d"}`, i))
	}
	writeLines(t, path, lines...)

	v := NewViewer(ViewerConfig{NoColor: true}, nil)
	entries, err := v.Tail(path, 3)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Msg != "line_7" || entries[2].Msg != "line_9" {
		t.Errorf("unexpected tail: %s .. %s", entries[0].Msg, entries[2].Msg)
	}
}

func TestViewer_Tail_Filters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.log")
	writeLines(t, path,
		`{"level":"DEBUG","msg":"expand","node":"a"}`,
		`{"level":"WARN","msg":"fetch_failed","node":"b"}`,
		`{"level":"ERROR","msg":"search_failed","node":"c"}`,
	)

	v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, nil)
	entries, err := v.Tail(path, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("level filter: expected 2 entries, got %d", len(entries))
	}

	v = NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`"node":"c"`), NoColor: true}, nil)
	entries, _ = v.Tail(path, 50)
	if len(entries) != 1 || entries[0].Msg != "search_failed" {
		t.Errorf("pattern filter: unexpected %+v", entries)
	}
}

func TestViewer_Tail_NonexistentFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, nil)
	if _, err := v.Tail("/nonexistent/pathmap.log", 10); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestViewer_Follow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "follow.log")
	writeLines(t, path, `{"level":"INFO","msg":"old"}`)

	v := NewViewer(ViewerConfig{NoColor: true}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// Give Follow time to seek to the end before appending.
	time.Sleep(150 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"level":"INFO","msg":"new"}` + "\n")
	_ = f.Close()

	select {
	case e := <-entries:
		if e.Msg != "new" {
			t.Errorf("expected appended entry, got %q", e.Msg)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for followed entry")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned %v", err)
	}
}

// ============================================================================
// Writer Rotation Tests
// ============================================================================

func TestRotatingWriter_Rotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "rotate.log")

	// 0 MB triggers rotation on every write
	w, err := NewRotatingWriter(logPath, 0, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	data := []byte(strings.Repeat("x", 2048))
	for i := 0; i < 2; i++ {
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(logPath); err != nil {
		t.Error("main log file should exist")
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Error("rotated file .1 should exist")
	}
}

func TestRotatingWriter_MaxFilesLimit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "maxfiles.log")

	w, err := NewRotatingWriter(logPath, 0, 2)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	for i := 0; i < 6; i++ {
		_, _ = w.Write([]byte(fmt.Sprintf("write %d\n", i)))
	}

	if _, err := os.Stat(logPath + ".2"); err != nil {
		t.Error("rotated file .2 should exist")
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("rotated file .3 should not exist (beyond maxFiles)")
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "closed.log"), 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Errorf("sync after close should be a no-op, got %v", err)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("write after close should fail")
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")

	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	w.SetImmediateSync(false)
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = fmt.Fprintf(w, "goroutine %d line %d\n", i, j)
			}
		}(i)
	}
	wg.Wait()
	_ = w.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "\n"); got != 200 {
		t.Errorf("expected 200 lines, got %d", got)
	}
}
