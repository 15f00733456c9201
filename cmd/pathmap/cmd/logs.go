package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathmap/internal/logging"
	"github.com/Aman-CERP/pathmap/internal/ui"
)

type logsOptions struct {
	lines  int
	level  string
	grep   string
	follow bool
	file   string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View pathmap logs",
		Long: `Show recent entries of the pathmap log file, optionally filtered by
level or pattern, and follow new entries as they are written.`,
		Example: `  pathmap logs
  pathmap logs -n 200 --level warn
  pathmap logs --grep "fetch failed" --follow`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.grep, "grep", "", "Only show entries matching this regular expression")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow new entries")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file (default ~/.pathmap/logs/pathmap.log)")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	if opts.level != "" && !logging.ValidLevel(opts.level) {
		return fmt.Errorf("invalid level %q (use: debug, info, warn, error)", opts.level)
	}

	var pattern *regexp.Regexp
	if opts.grep != "" {
		re, err := regexp.Compile(opts.grep)
		if err != nil {
			return fmt.Errorf("invalid --grep pattern: %w", err)
		}
		pattern = re
	}

	path, err := logging.FindLogFile(opts.file)
	if err != nil {
		return err
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()),
	}, cmd.OutOrStdout())

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch := make(chan logging.LogEntry, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, ch)
	}()

	for {
		select {
		case entry := <-ch:
			viewer.Print([]logging.LogEntry{entry})
		case err := <-errCh:
			return err
		}
	}
}

// cmdContext returns the command context, or Background when the command
// was run without one.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
