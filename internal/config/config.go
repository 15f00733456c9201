// Package config loads pathmap configuration.
//
// Precedence, lowest first:
//  1. Defaults (NewConfig)
//  2. User config ($XDG_CONFIG_HOME/pathmap/config.yaml)
//  3. Project config (.pathmap.yaml in the working directory)
//  4. PATHMAP_* environment variables
//
// The merged result is validated before it is returned.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	perrors "github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/logging"
	"github.com/Aman-CERP/pathmap/internal/provider"
	"github.com/Aman-CERP/pathmap/internal/search"
	"github.com/Aman-CERP/pathmap/internal/store"
	"github.com/Aman-CERP/pathmap/internal/validation"
)

// ProjectConfigName is the per-directory config file.
const ProjectConfigName = ".pathmap.yaml"

// Config represents the complete pathmap configuration.
type Config struct {
	Version   int                `yaml:"version" json:"version"`
	Search    SearchConfig       `yaml:"search" json:"search"`
	Provider  ProviderConfig     `yaml:"provider" json:"provider"`
	Store     StoreConfig        `yaml:"store" json:"store"`
	Logging   LoggingConfig      `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig    `yaml:"telemetry" json:"telemetry"`
	Queries   []validation.Query `yaml:"queries" json:"queries"`
}

// SearchConfig configures the search engine.
type SearchConfig struct {
	// Tolerance is the default extra-hop budget for solve and batch.
	Tolerance int `yaml:"tolerance" json:"tolerance"`

	// Workers bounds concurrent neighbor fetches.
	Workers int `yaml:"workers" json:"workers"`

	// FrontierCapacity bounds the number of queued nodes.
	FrontierCapacity int `yaml:"frontier_capacity" json:"frontier_capacity"`

	// CapacityPolicy is "requeue" (wait for frontier space) or "fatal".
	CapacityPolicy string `yaml:"capacity_policy" json:"capacity_policy"`
}

// ProviderConfig configures where neighbors come from.
type ProviderConfig struct {
	Kind         string        `yaml:"kind" json:"kind"` // musicmap or file
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	CacheSize    int           `yaml:"cache_size" json:"cache_size"` // 0 disables the LRU
	MaxFailures  int           `yaml:"max_failures" json:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
	GraphFile    string        `yaml:"graph_file" json:"graph_file"` // required for kind=file
}

// StoreConfig configures graph persistence.
type StoreConfig struct {
	Backend     string        `yaml:"backend" json:"backend"` // sqlite, badger or file
	Path        string        `yaml:"path" json:"path"`       // empty uses the backend default
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// TelemetryConfig configures local solve telemetry.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"` // empty uses ~/.pathmap/telemetry.db
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	pd := provider.DefaultConfig()
	return &Config{
		Version: 1,
		Search: SearchConfig{
			Tolerance:        0,
			Workers:          search.DefaultWorkers,
			FrontierCapacity: search.DefaultFrontierCapacity,
			CapacityPolicy:   string(search.PolicyRequeue),
		},
		Provider: ProviderConfig{
			Kind:         string(provider.KindMusicMap),
			BaseURL:      pd.BaseURL,
			Timeout:      pd.Timeout,
			UserAgent:    pd.UserAgent,
			CacheSize:    pd.CacheSize,
			MaxFailures:  pd.MaxFailures,
			ResetTimeout: pd.ResetTimeout,
		},
		Store: StoreConfig{
			Backend:     string(store.BackendSQLite),
			LockTimeout: store.DefaultLockTimeout,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/pathmap/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pathmap", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "pathmap", "config.yaml")
	}
	return filepath.Join(home, ".config", "pathmap", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user config.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// ProjectConfigPath returns the project config in dir, preferring .yaml
// over .yml, or "" when neither exists.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{ProjectConfigName, ".pathmap.yml"} {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// Load builds the configuration for dir. An explicit path, when non-empty,
// replaces the project config lookup.
func Load(dir, explicit string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	switch {
	case explicit != "":
		if !fileExists(explicit) {
			return nil, perrors.New(perrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", explicit), nil)
		}
		if err := cfg.loadYAML(explicit); err != nil {
			return nil, err
		}
	case dir != "":
		if projectPath := ProjectConfigPath(dir); projectPath != "" {
			if err := cfg.loadYAML(projectPath); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, perrors.ConfigError(fmt.Sprintf("invalid configuration: %v", err), err).
			WithSuggestion("Run 'pathmap config show' to see the effective configuration")
	}
	return cfg, nil
}

// loadYAML decodes path over c. Keys missing from the file keep their
// current values; unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return perrors.New(perrors.ErrCodeConfigPermission,
				fmt.Sprintf("cannot read config file %s", path), err)
		}
		return perrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return perrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("file", path)
	}
	return nil
}

// applyEnvOverrides applies PATHMAP_* variables. Malformed numbers are
// reported rather than ignored.
func (c *Config) applyEnvOverrides() error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"PATHMAP_TOLERANCE", &c.Search.Tolerance},
		{"PATHMAP_WORKERS", &c.Search.Workers},
		{"PATHMAP_FRONTIER_CAPACITY", &c.Search.FrontierCapacity},
		{"PATHMAP_CACHE_SIZE", &c.Provider.CacheSize},
	}
	for _, v := range ints {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return perrors.ConfigError(fmt.Sprintf("%s must be an integer, got %q", v.name, raw), err)
		}
		*v.dst = n
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"PATHMAP_CAPACITY_POLICY", &c.Search.CapacityPolicy},
		{"PATHMAP_PROVIDER", &c.Provider.Kind},
		{"PATHMAP_BASE_URL", &c.Provider.BaseURL},
		{"PATHMAP_GRAPH_FILE", &c.Provider.GraphFile},
		{"PATHMAP_STORE_BACKEND", &c.Store.Backend},
		{"PATHMAP_STORE_PATH", &c.Store.Path},
		{"PATHMAP_LOG_LEVEL", &c.Logging.Level},
	}
	for _, v := range strs {
		if raw := os.Getenv(v.name); raw != "" {
			*v.dst = raw
		}
	}

	if raw := os.Getenv("PATHMAP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return perrors.ConfigError(fmt.Sprintf("PATHMAP_TIMEOUT must be a duration, got %q", raw), err)
		}
		c.Provider.Timeout = d
	}
	if raw := os.Getenv("PATHMAP_TELEMETRY"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return perrors.ConfigError(fmt.Sprintf("PATHMAP_TELEMETRY must be true or false, got %q", raw), err)
		}
		c.Telemetry.Enabled = enabled
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validation.ValidateTolerance(c.Search.Tolerance); err != nil {
		return fmt.Errorf("search.tolerance: %w", err)
	}
	if c.Search.Workers < 1 || c.Search.Workers > 512 {
		return fmt.Errorf("search.workers must be between 1 and 512, got %d", c.Search.Workers)
	}
	if c.Search.FrontierCapacity < 1 {
		return fmt.Errorf("search.frontier_capacity must be positive, got %d", c.Search.FrontierCapacity)
	}
	if _, err := search.ParseCapacityPolicy(c.Search.CapacityPolicy); err != nil {
		return fmt.Errorf("search.capacity_policy: %w", err)
	}

	switch provider.Kind(c.Provider.Kind) {
	case provider.KindMusicMap:
		u, err := url.Parse(c.Provider.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("provider.base_url must be an http(s) URL, got %q", c.Provider.BaseURL)
		}
	case provider.KindFile:
		if c.Provider.GraphFile == "" {
			return fmt.Errorf("provider.graph_file is required when provider.kind is 'file'")
		}
	default:
		return fmt.Errorf("provider.kind must be 'musicmap' or 'file', got %q", c.Provider.Kind)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive, got %s", c.Provider.Timeout)
	}
	if c.Provider.CacheSize < 0 {
		return fmt.Errorf("provider.cache_size must be non-negative, got %d", c.Provider.CacheSize)
	}
	if c.Provider.MaxFailures < 1 {
		return fmt.Errorf("provider.max_failures must be positive, got %d", c.Provider.MaxFailures)
	}
	if c.Provider.ResetTimeout <= 0 {
		return fmt.Errorf("provider.reset_timeout must be positive, got %s", c.Provider.ResetTimeout)
	}

	switch store.Backend(c.Store.Backend) {
	case store.BackendSQLite, store.BackendBadger, store.BackendFile:
	default:
		return fmt.Errorf("store.backend must be 'sqlite', 'badger' or 'file', got %q", c.Store.Backend)
	}
	if c.Store.LockTimeout < 0 {
		return fmt.Errorf("store.lock_timeout must be non-negative, got %s", c.Store.LockTimeout)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 1 {
		return fmt.Errorf("logging.max_size_mb must be positive, got %d", c.Logging.MaxSizeMB)
	}
	if c.Logging.MaxFiles < 1 {
		return fmt.Errorf("logging.max_files must be positive, got %d", c.Logging.MaxFiles)
	}

	for i, q := range c.Queries {
		nq, err := validation.NormalizeQuery(q)
		if err != nil {
			return fmt.Errorf("queries[%d]: %w", i, err)
		}
		c.Queries[i] = nq
	}
	return nil
}

// EngineConfig converts the search section for the engine.
func (c *Config) EngineConfig() search.Config {
	policy, err := search.ParseCapacityPolicy(c.Search.CapacityPolicy)
	if err != nil {
		policy = search.PolicyRequeue
	}
	return search.Config{
		Workers:          c.Search.Workers,
		FrontierCapacity: c.Search.FrontierCapacity,
		Policy:           policy,
	}
}

// ProviderConfig converts the provider section.
func (c *Config) ProviderConfig() provider.Config {
	return provider.Config{
		Kind:         provider.Kind(c.Provider.Kind),
		BaseURL:      c.Provider.BaseURL,
		Timeout:      c.Provider.Timeout,
		UserAgent:    c.Provider.UserAgent,
		CacheSize:    c.Provider.CacheSize,
		MaxFailures:  c.Provider.MaxFailures,
		ResetTimeout: c.Provider.ResetTimeout,
		GraphFile:    c.Provider.GraphFile,
	}
}

// StoreConfig converts the store section.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Backend:     store.Backend(c.Store.Backend),
		Path:        c.Store.Path,
		LockTimeout: c.Store.LockTimeout,
	}
}

// LoggingConfig converts the logging section. debug forces debug level with
// stderr mirroring.
func (c *Config) LoggingConfig(debug bool) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.MaxSizeMB = c.Logging.MaxSizeMB
	cfg.MaxFiles = c.Logging.MaxFiles
	if debug {
		cfg.Level = "debug"
		cfg.WriteToStderr = true
	}
	return cfg
}

// TelemetryPath returns the telemetry database location.
func (c *Config) TelemetryPath() string {
	if c.Telemetry.Path != "" {
		return c.Telemetry.Path
	}
	return filepath.Join(logging.DefaultDataDir(), "telemetry.db")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
