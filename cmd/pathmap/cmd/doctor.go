package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathmap/internal/config"
	"github.com/Aman-CERP/pathmap/internal/logging"
	"github.com/Aman-CERP/pathmap/internal/output"
	"github.com/Aman-CERP/pathmap/internal/preflight"
	"github.com/Aman-CERP/pathmap/pkg/version"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		offline    bool
		sample     string
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run system diagnostics to ensure pathmap can operate correctly.

Checks:
  - Disk space under the data directory (100MB minimum)
  - Write permissions on the data directory
  - File descriptor limit for the configured workers
  - Graph store availability (not locked by another process)
  - Neighbor provider (graph file readable, or music-map reachable)

A provider that cannot be reached over the network is a warning; stored
neighbors still answer queries.`,
		Example: `  pathmap doctor
  pathmap doctor --verbose
  pathmap doctor --offline --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput, offline, sample)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip checks that need the network")
	cmd.Flags().StringVar(&sample, "sample", preflight.DefaultSampleID, "Artist fetched to test the provider")

	return cmd
}

// doctorReport is the JSON output of doctor.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

// preflightTarget describes what the checks run against for cfg.
func preflightTarget(cfg *config.Config, sample string) preflight.Target {
	return preflight.Target{
		DataDir:  logging.DefaultDataDir(),
		Workers:  cfg.Search.Workers,
		Store:    cfg.StoreConfig(),
		Provider: cfg.ProviderConfig(),
		SampleID: sample,
	}
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput, offline bool, sample string) error {
	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithOffline(offline),
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(ctx, preflightTarget(cfg, sample))

	dataDir := logging.DefaultDataDir()
	if !checker.HasCriticalFailures(results) {
		_ = preflight.MarkPassed(dataDir, version.Version)
	}

	if jsonOutput {
		if err := output.New(cmd.OutOrStdout()).JSON(doctorReport{
			Status: checker.SummaryStatus(results),
			Checks: results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed")
	}
	return nil
}

// servePreflight runs the checks once per installed version before serving.
// Output goes to the log only; stdout belongs to the protocol.
func servePreflight(ctx context.Context, cfg *config.Config, a *app) error {
	dataDir := logging.DefaultDataDir()
	if !preflight.NeedsCheck(dataDir, version.Version) {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// The store is already held by this process.
	target := preflightTarget(cfg, "")
	checker := preflight.New(preflight.WithOffline(true))
	results := []preflight.CheckResult{
		checker.CheckDiskSpace(target.DataDir),
		checker.CheckWritePermissions(target.DataDir),
		checker.CheckFileDescriptors(target.Workers),
		checker.CheckProvider(checkCtx, target.Provider, ""),
	}
	for _, r := range results {
		a.logger.Info("preflight check",
			slog.String("name", r.Name),
			slog.String("status", r.Status.String()),
			slog.String("message", r.Message))
	}
	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed; run 'pathmap doctor' for details")
	}
	return preflight.MarkPassed(dataDir, version.Version)
}
