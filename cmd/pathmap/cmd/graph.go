package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathmap/internal/graph"
	"github.com/Aman-CERP/pathmap/internal/output"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect and move the stored similarity graph",
	}

	cmd.AddCommand(newGraphStatsCmd())
	cmd.AddCommand(newGraphNeighborsCmd())
	cmd.AddCommand(newGraphExportCmd())
	cmd.AddCommand(newGraphImportCmd())

	return cmd
}

func newGraphStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show node and edge counts of the stored graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats := a.solver.Stats()
			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(stats)
			}
			out.KeyValues(
				output.Field{Key: "Nodes", Value: stats.Nodes},
				output.Field{Key: "Expanded", Value: stats.Expanded},
				output.Field{Key: "Edges", Value: stats.Edges},
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newGraphNeighborsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "neighbors <id>",
		Short: "List the similar artists of one artist",
		Long: `List the children of an artist in map order, fetching them from the
provider when the artist has not been expanded yet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			before := a.solver.Stats().Expanded
			ids, err := a.solver.Neighbors(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.solver.Stats().Expanded != before {
				if err := a.solver.Save(cmd.Context()); err != nil {
					return err
				}
			}

			if jsonOutput {
				if ids == nil {
					ids = []string{}
				}
				return output.New(cmd.OutOrStdout()).JSON(ids)
			}
			for _, id := range ids {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as a JSON array")
	return cmd
}

func newGraphExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored graph as JSON",
		Example: `  pathmap graph export > graph.json
  pathmap graph export --out graph.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			snap := a.solver.Snapshot()

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", outPath, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			if err := output.New(w).JSON(snap); err != nil {
				return err
			}

			if outPath != "" {
				output.New(cmd.ErrOrStderr()).Successf("Exported %d nodes (%d edges) to %s",
					snap.Len(), snap.Edges(), outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newGraphImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a JSON graph export into the stored graph",
		Long: `Merge a graph written by 'pathmap graph export' into the stored graph.

Nodes that are already expanded in the stored graph cannot be imported
again; the import fails without saving in that case.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.solver.Import(cmd.Context(), snap); err != nil {
				return err
			}
			if err := a.solver.Save(cmd.Context()); err != nil {
				return err
			}

			stats := a.solver.Stats()
			output.New(cmd.OutOrStdout()).Successf("Imported %d nodes; graph now has %d nodes (%d expanded, %d edges)",
				snap.Len(), stats.Nodes, stats.Expanded, stats.Edges)
			return nil
		},
	}
	return cmd
}

// readSnapshot decodes a JSON graph export.
func readSnapshot(path string) (graph.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var snap graph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return graph.Snapshot{}, fmt.Errorf("failed to parse graph export %s: %w", path, err)
	}
	return snap, nil
}
