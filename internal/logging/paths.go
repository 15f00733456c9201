package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDirEnv overrides the pathmap data directory (~/.pathmap).
const DataDirEnv = "PATHMAP_HOME"

// DefaultDataDir returns the pathmap data directory. It honours PATHMAP_HOME
// and falls back to the temp directory if home is unavailable.
func DefaultDataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".pathmap")
	}
	return filepath.Join(home, ".pathmap")
}

// DefaultLogDir returns the default log directory (~/.pathmap/logs/).
func DefaultLogDir() string {
	return filepath.Join(DefaultDataDir(), "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "pathmap.log")
}

// FindLogFile resolves the log file to view: the explicit path if given,
// otherwise the default path. Returns an error if neither exists.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no log file found at %s\nRun a command first, e.g.: pathmap --debug solve mozart jacob+collier", path)
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
