package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathmap/internal/search"
	"github.com/Aman-CERP/pathmap/internal/solver"
	"github.com/Aman-CERP/pathmap/internal/ui"
	"github.com/Aman-CERP/pathmap/internal/validation"
)

func newBatchCmd() *cobra.Command {
	var (
		opts solveOptions
		file string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Solve a list of queries against one shared graph",
		Long: `Run several queries one after another. Every query reuses the neighbors
fetched by the ones before it, and the graph is saved once at the end.

Queries come from --file, then the queries: list in the config, then the
built-in demo list.`,
		Example: `  pathmap batch
  pathmap batch --file queries.yaml --summary
  pathmap batch --json > results.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd.Context(), cmd, file, opts)
		},
	}

	addEngineFlags(cmd, &opts)
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a queries: list")

	return cmd
}

// batchQueries picks the query source.
func batchQueries(file string, configured []validation.Query) ([]validation.Query, error) {
	if file != "" {
		return validation.LoadQueries(file)
	}
	if len(configured) > 0 {
		return configured, nil
	}
	return solver.DefaultQueries(), nil
}

func runBatch(ctx context.Context, cmd *cobra.Command, file string, opts solveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyEngineFlags(cmd, cfg, opts); err != nil {
		return err
	}

	queries, err := batchQueries(file, cfg.Queries)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return fmt.Errorf("no queries to run")
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

	results, batchErr := a.solver.Batch(ctx, queries, solver.WithObserver(rendererObserver{r: renderer}))
	renderer.Complete(ui.Summarize(results, time.Since(began)))
	_ = renderer.Stop()

	if err := writeResults(cmd, results, opts); err != nil {
		return err
	}
	return batchErr
}

// rendererObserver forwards batch events to a renderer.
type rendererObserver struct {
	r ui.Renderer
}

func (o rendererObserver) BeginQuery(index, total int, q validation.Query) {
	o.r.BeginQuery(ui.QueryEvent{Index: index, Total: total, Start: q.Start, Goal: q.Goal})
}

func (o rendererObserver) EndQuery(_ int, res *search.Result, err error) {
	o.r.EndQuery(res)
	if err != nil {
		query := "?"
		if res != nil {
			query = res.Start + " -> " + res.Goal
		}
		o.r.AddError(ui.ErrorEvent{Query: query, Err: err})
	}
}
