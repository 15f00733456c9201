package cmd

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/graph"
	"github.com/Aman-CERP/pathmap/internal/logging"
	"github.com/Aman-CERP/pathmap/internal/output"
	"github.com/Aman-CERP/pathmap/internal/provider"
	"github.com/Aman-CERP/pathmap/internal/store"
	"github.com/Aman-CERP/pathmap/internal/telemetry"
	"github.com/Aman-CERP/pathmap/internal/ui"
)

// statsTelemetryLimit bounds the endpoint and miss lists in stats output.
const statsTelemetryLimit = 10

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show graph store and solve history status",
		Long: `Show the size of the stored graph, where it lives, and a summary of
past solves recorded by local telemetry.

A store held by a running 'pathmap serve' is reported without graph counts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	storeCfg := cfg.StoreConfig()
	if storeCfg.Path == "" {
		storeCfg.Path = store.DefaultPath(storeCfg.Backend)
	}

	info := ui.StatusInfo{
		Backend:   string(storeCfg.Backend),
		StorePath: storeCfg.Path,
		Provider:  cfg.Provider.Kind,
	}
	if cfg.Provider.Kind == string(provider.KindMusicMap) {
		info.ProviderURL = cfg.Provider.BaseURL
	}
	info.StoreSize, info.LastSaved = pathUsage(storeCfg.Path)

	stats, err := storedGraphStats(ctx, storeCfg)
	switch {
	case errors.HasCode(err, errors.ErrCodeStoreLocked):
		if !jsonOutput {
			output.New(cmd.ErrOrStderr()).Warning("Graph store is in use by another pathmap process; counts omitted")
		}
	case err != nil:
		return err
	default:
		info.Graph = stats
	}

	if cfg.Telemetry.Enabled {
		if snap := loadTelemetry(cfg.TelemetryPath()); snap != nil {
			info.Telemetry = snap
		}
	}

	r := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return r.RenderJSON(info)
	}
	return r.Render(info)
}

// storedGraphStats loads the stored snapshot into a scratch index.
func storedGraphStats(ctx context.Context, cfg store.Config) (graph.Stats, error) {
	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		return graph.Stats{}, nil
	}

	st, err := store.Open(ctx, cfg, logging.Discard())
	if err != nil {
		return graph.Stats{}, err
	}
	defer func() { _ = st.Close() }()

	snap, err := st.Load(ctx)
	if err != nil {
		return graph.Stats{}, err
	}
	idx := graph.NewIndex()
	if err := idx.Load(snap); err != nil {
		return graph.Stats{}, err
	}
	return idx.Stats(), nil
}

// loadTelemetry returns the persisted solve summary, or nil when there is
// none yet.
func loadTelemetry(path string) *telemetry.SolveMetricsSnapshot {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ms, err := telemetry.OpenSQLiteMetricsStore(path)
	if err != nil {
		return nil
	}
	defer func() { _ = ms.Close() }()

	snap, err := telemetry.LoadSnapshot(ms, statsTelemetryLimit)
	if err != nil {
		return nil
	}
	return snap
}

// pathUsage returns the total size and latest modification time of a file,
// or of every file under a directory.
func pathUsage(path string) (int64, time.Time) {
	var (
		size   int64
		latest time.Time
	)
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		size += fi.Size()
		if fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
		return nil
	})
	return size, latest
}
