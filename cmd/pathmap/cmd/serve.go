package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pathmap/internal/async"
	"github.com/Aman-CERP/pathmap/internal/mcp"
)

// shutdownTimeout bounds the final graph save on exit.
const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var saveInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Run pathmap as a Model Context Protocol server on stdin/stdout.

Tools: find_paths, neighbors, graph_stats.

Nothing but protocol messages is written to stdout; logs go to the log
file (and stderr with --debug). Newly fetched neighbors are saved in the
background and once more on shutdown.`,
		Example: `  pathmap serve
  pathmap serve --save-interval 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmdContext(cmd), saveInterval)
		},
	}

	cmd.Flags().DurationVar(&saveInterval, "save-interval", async.DefaultSaveInterval, "How often pending graph changes are saved")

	return cmd
}

func runServe(ctx context.Context, saveInterval time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, appOptions{serve: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := servePreflight(ctx, cfg, a); err != nil {
		return err
	}

	srv, err := mcp.NewServer(a.solver, cfg, a.logger)
	if err != nil {
		return err
	}

	saver := async.NewAutosaver(async.AutosaverConfig{
		Interval: saveInterval,
		Logger:   a.logger,
	}, a.solver.Save)
	saver.Start(ctx)
	srv.SetAutosaver(saver)
	if a.metrics != nil {
		srv.SetMetrics(a.metrics)
	}

	serveErr := srv.Serve(ctx)

	// The serve context is done by now; the final save gets its own.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Close(shutdownCtx); err != nil {
		a.logger.Error("final graph save failed", slog.String("error", err.Error()))
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
