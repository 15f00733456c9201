// Package cmd provides the CLI commands for pathmap.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/profiling"
	"github.com/Aman-CERP/pathmap/pkg/version"
)

// Profiling flags
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profSession  *profiling.Session
)

// Global flags
var (
	debugMode  bool
	configFile string
)

// NewRootCmd creates the root command for the pathmap CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pathmap",
		Short: "Find every path between two artists on a music similarity map",
		Long: `pathmap searches the music-map.com similarity graph for the shortest
paths between two artists, plus paths up to a tolerance of extra hops.

Fetched neighbor lists are cached in a local graph store, so later
queries get faster as the map fills in.`,
		Example: `  pathmap solve "the beatles" "miles davis"
  pathmap solve mozart jacob+collier --tolerance 1
  pathmap batch
  pathmap serve`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("pathmap version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging (also mirrored to stderr)")
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default .pathmap.yaml in the current directory)")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	cmd.AddCommand(newSolveCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newGraphCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfiling(_ *cobra.Command, _ []string) error {
	cfg := profiling.Config{CPU: profileCPU, Mem: profileMem, Trace: profileTrace}
	if !cfg.Enabled() {
		return nil
	}
	s, err := profiling.Start(cfg)
	if err != nil {
		return err
	}
	profSession = s
	return nil
}

func stopProfiling(_ *cobra.Command, _ []string) error {
	if profSession == nil {
		return nil
	}
	err := profSession.Stop()
	profSession = nil
	if err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

// Execute runs the root command and prints any error.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		_ = stopProfiling(nil, nil)
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
	}
	return err
}
