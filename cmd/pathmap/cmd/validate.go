package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathmap/internal/output"
	"github.com/Aman-CERP/pathmap/internal/validation"
)

func newValidateCmd() *cobra.Command {
	var (
		file       string
		jsonOutput bool
		noSave     bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check known paths against the map",
		Long: `Run a list of expectations and report which ones still hold.

Each expectation names a query, the shortest path length it should find
(in nodes, 0 for unreachable) and optionally a minimum number of paths.`,
		Example: `  pathmap validate --file expectations.yaml
  pathmap validate --file expectations.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context(), cmd, file, jsonOutput, noSave)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with an expectations: list (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not write newly fetched neighbors to the graph store")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runValidate(ctx context.Context, cmd *cobra.Command, file string, jsonOutput, noSave bool) error {
	exps, err := validation.LoadExpectations(file)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	report := validation.CheckAll(ctx, a.solver, exps)
	if !noSave {
		if err := a.solver.Save(ctx); err != nil {
			return err
		}
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		if err := out.JSON(report); err != nil {
			return err
		}
	} else {
		for _, r := range report.Results {
			label := fmt.Sprintf("%s: %s -> %s", r.Expectation.ID, r.Expectation.Start, r.Expectation.Goal)
			switch {
			case r.Error != "":
				out.Errorf("%s (%s)", label, r.Error)
			case r.Passed:
				out.Successf("%s (length %d, %d paths)", label, r.Length, r.Paths)
			default:
				out.Errorf("%s (want length %d, got %d with %d paths, %s)",
					label, r.Expectation.Length, r.Length, r.Paths, r.Status)
			}
		}
		out.Newline()
		out.Statusf("", "%d/%d passed", report.Passed, report.Total)
	}

	if report.Passed != report.Total {
		return fmt.Errorf("%d of %d expectations failed", report.Total-report.Passed, report.Total)
	}
	return nil
}
