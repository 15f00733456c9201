package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathmap/internal/config"
	"github.com/Aman-CERP/pathmap/internal/output"
	"github.com/Aman-CERP/pathmap/internal/search"
	"github.com/Aman-CERP/pathmap/internal/solver"
	"github.com/Aman-CERP/pathmap/internal/ui"
)

// solveOptions holds CLI flags for solve and batch.
type solveOptions struct {
	tolerance      int
	workers        int
	capacity       int
	capacityPolicy string
	jsonOutput     bool
	summary        bool
	noTUI          bool
	noSave         bool
}

func newSolveCmd() *cobra.Command {
	var opts solveOptions

	cmd := &cobra.Command{
		Use:   "solve <start> <goal>",
		Short: "Find paths between two artists",
		Long: `Find every shortest path from one artist to another on the similarity
map, plus every path up to --tolerance hops longer.

With the music-map provider, ids are music-map.com slugs and display names
are mapped to them, so "The Beatles" and the+beatles are the same artist.
Graph file ids are used exactly as written.`,
		Example: `  pathmap solve "the beatles" "miles davis"
  pathmap solve mozart jacob+collier --tolerance 1
  pathmap solve nicki+minaj chick+corea --summary --no-tui
  pathmap solve a b --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd.Context(), cmd, args[0], args[1], opts)
		},
	}

	addEngineFlags(cmd, &opts)
	cmd.Flags().IntVarP(&opts.tolerance, "tolerance", "t", 0, "Extra hops allowed beyond the shortest path (default from config)")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "Do not write newly fetched neighbors to the graph store")

	return cmd
}

// addEngineFlags registers the flags shared by solve and batch.
func addEngineFlags(cmd *cobra.Command, opts *solveOptions) {
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Concurrent neighbor fetches (default from config)")
	cmd.Flags().IntVar(&opts.capacity, "capacity", 0, "Frontier capacity (default from config)")
	cmd.Flags().StringVar(&opts.capacityPolicy, "capacity-policy", "", "What to do when the frontier is full: requeue or fatal")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print path counts per length instead of every path")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Plain progress output instead of the interactive display")
}

// applyEngineFlags overrides cfg with the flags the user set, then
// revalidates.
func applyEngineFlags(cmd *cobra.Command, cfg *config.Config, opts solveOptions) error {
	flags := cmd.Flags()
	if flags.Changed("tolerance") {
		cfg.Search.Tolerance = opts.tolerance
	}
	if flags.Changed("workers") {
		cfg.Search.Workers = opts.workers
	}
	if flags.Changed("capacity") {
		cfg.Search.FrontierCapacity = opts.capacity
	}
	if flags.Changed("capacity-policy") {
		cfg.Search.CapacityPolicy = opts.capacityPolicy
	}
	return cfg.Validate()
}

// newRenderer returns the progress renderer. Progress goes to stderr so that
// stdout carries only results.
func newRenderer(cmd *cobra.Command, opts solveOptions) ui.Renderer {
	return ui.NewRenderer(ui.NewConfig(cmd.ErrOrStderr(),
		ui.WithForcePlain(opts.noTUI || opts.jsonOutput),
		ui.WithNoColor(ui.DetectNoColor())))
}

func runSolve(ctx context.Context, cmd *cobra.Command, start, goal string, opts solveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyEngineFlags(cmd, cfg, opts); err != nil {
		return err
	}

	renderer := newRenderer(cmd, opts)
	a, err := openApp(ctx, cfg, appOptions{progress: renderer.UpdateProgress})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := renderer.Start(ctx); err != nil {
		return err
	}
	began := time.Now()

	renderer.BeginQuery(ui.QueryEvent{Index: 1, Total: 1, Start: start, Goal: goal})
	res, solveErr := a.solver.Solve(ctx, start, goal, cfg.Search.Tolerance)
	renderer.EndQuery(res)
	if solveErr != nil {
		renderer.AddError(ui.ErrorEvent{Query: start + " -> " + goal, Err: solveErr})
	}
	renderer.Complete(ui.Summarize([]*search.Result{res}, time.Since(began)))
	_ = renderer.Stop()

	if !opts.noSave && res.Stats.Expanded > 0 {
		if err := a.solver.Save(ctx); err != nil {
			a.logger.Error("graph save failed", slog.String("error", err.Error()))
			return err
		}
	}

	if solveErr != nil {
		return solveErr
	}
	return writeResults(cmd, []*search.Result{res}, opts)
}

// writeResults prints results to stdout as JSON or text reports.
func writeResults(cmd *cobra.Command, results []*search.Result, opts solveOptions) error {
	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		w := output.New(out)
		if len(results) == 1 {
			return w.JSON(results[0])
		}
		return w.JSON(results)
	}

	report := solver.Report
	if opts.summary {
		report = solver.ReportSummary
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		if err := report(out, res); err != nil {
			return err
		}
	}
	return nil
}
