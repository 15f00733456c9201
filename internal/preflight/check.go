package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/provider"
	"github.com/Aman-CERP/pathmap/internal/store"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target is what the checks run against.
type Target struct {
	DataDir  string
	Workers  int
	Store    store.Config
	Provider provider.Config
	// SampleID is fetched to test the provider. Empty uses DefaultSampleID.
	SampleID string
}

// DefaultSampleID is the artist fetched by the provider check.
const DefaultSampleID = "the+beatles"

// Checker performs preflight validation checks.
type Checker struct {
	offline bool
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithOffline skips checks that need the network.
func WithOffline(offline bool) Option {
	return func(c *Checker) {
		c.offline = offline
	}
}

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against t.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	return []CheckResult{
		c.CheckDiskSpace(t.DataDir),
		c.CheckWritePermissions(t.DataDir),
		c.CheckFileDescriptors(t.Workers),
		c.CheckStore(ctx, t.Store),
		c.CheckProvider(ctx, t.Provider, t.SampleID),
	}
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "pathmap System Check")
	_, _ = fmt.Fprintln(c.output, "====================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, failures []string
	for _, r := range results {
		if r.IsCritical() {
			failures = append(failures, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(failures) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(failures))
		for _, e := range failures {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckWritePermissions checks that dir can be created and written.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}

	testFile := filepath.Join(dir, ".pathmap-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = fmt.Sprintf("Data directory: %s", dir)
	return result
}

// CheckStore reports whether the graph store can be locked right now. A
// store held by another process is a warning; commands wait for it.
func (c *Checker) CheckStore(ctx context.Context, cfg store.Config) CheckResult {
	result := CheckResult{
		Name:     "graph_store",
		Required: true,
	}
	if cfg.Backend == "" {
		cfg.Backend = store.BackendSQLite
	}
	if cfg.Path == "" {
		cfg.Path = store.DefaultPath(cfg.Backend)
	}
	result.Details = fmt.Sprintf("%s store at %s", cfg.Backend, cfg.Path)

	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		result.Status = StatusPass
		result.Message = "new store (created on first save)"
		return result
	}

	lock, err := store.AcquireLock(ctx, cfg.Path+".lock", 0)
	switch {
	case errors.HasCode(err, errors.ErrCodeStoreLocked):
		result.Status = StatusWarn
		result.Message = "in use by another pathmap process"
		return result
	case err != nil:
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	_ = lock.Release()

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s store available", cfg.Backend)
	return result
}

// CheckProvider fetches sampleID from the configured provider. Network
// failures are warnings since stored neighbors still serve queries.
func (c *Checker) CheckProvider(ctx context.Context, cfg provider.Config, sampleID string) CheckResult {
	result := CheckResult{
		Name:     "provider",
		Required: cfg.Kind == provider.KindFile,
	}
	if sampleID == "" {
		sampleID = DefaultSampleID
	}

	if cfg.Kind == provider.KindFile {
		fp, err := provider.LoadFileProvider(cfg.GraphFile)
		if err != nil {
			result.Status = StatusFail
			result.Message = err.Error()
			return result
		}
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d nodes in %s", len(fp.IDs()), fp.Path())
		return result
	}

	result.Details = fmt.Sprintf("Base URL: %s", cfg.BaseURL)
	if c.offline {
		result.Status = StatusWarn
		result.Message = "skipped (offline)"
		return result
	}

	cfg.CacheSize = 0
	p, err := provider.New(cfg, nil)
	if err != nil {
		result.Status = StatusFail
		result.Required = true
		result.Message = err.Error()
		return result
	}
	ids, err := p.FetchNeighbors(ctx, sampleID)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot fetch %s: %v", sampleID, err)
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("fetched %d neighbors of %s", len(ids), sampleID)
	return result
}
