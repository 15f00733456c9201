package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/pathmap/internal/config"
	"github.com/Aman-CERP/pathmap/internal/logging"
	"github.com/Aman-CERP/pathmap/internal/provider"
	"github.com/Aman-CERP/pathmap/internal/search"
	"github.com/Aman-CERP/pathmap/internal/solver"
	"github.com/Aman-CERP/pathmap/internal/store"
	"github.com/Aman-CERP/pathmap/internal/telemetry"
)

// appOptions selects what a command needs from the app.
type appOptions struct {
	// serve keeps logs off stderr unless --debug is set.
	serve bool
	// noStore runs against an in-memory graph only.
	noStore bool
	// progress receives engine progress reports.
	progress func(search.Progress)
}

// app wires configuration, logging, the provider, the graph store,
// telemetry and the solver for one command run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	solver  *solver.Solver
	store   store.GraphStore
	metrics *telemetry.SolveMetrics

	closers []func() error
}

// loadConfig loads configuration for the current directory and --config.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return config.Load(cwd, configFile)
}

// setupLogging starts file logging for cfg.
func setupLogging(cfg *config.Config, serve bool) (*slog.Logger, func(), error) {
	logCfg := cfg.LoggingConfig(debugMode)
	if serve && !debugMode {
		logCfg = logging.ServeConfig(cfg.Logging.Level)
		logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
		logCfg.MaxFiles = cfg.Logging.MaxFiles
	}
	if err := logging.EnsureLogDir(); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return logging.Setup(logCfg)
}

// openApp builds the app and loads the stored graph.
func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	logger, cleanup, err := setupLogging(cfg, opts.serve)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	a.closers = append(a.closers, func() error { cleanup(); return nil })

	p, err := provider.New(cfg.ProviderConfig(), logger)
	if err != nil {
		return nil, err
	}

	solverOpts := []solver.Option{
		solver.WithLogger(logger),
		solver.WithEngineOptions(search.WithConfig(cfg.EngineConfig())),
	}
	if opts.progress != nil {
		solverOpts = append(solverOpts, solver.WithEngineOptions(search.WithProgress(opts.progress)))
	}

	if !opts.noStore {
		st, err := store.Open(ctx, cfg.StoreConfig(), logger)
		if err != nil {
			return nil, err
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
		solverOpts = append(solverOpts, solver.WithStore(st))
	}

	if cfg.Telemetry.Enabled {
		ms, err := telemetry.OpenSQLiteMetricsStore(cfg.TelemetryPath())
		if err != nil {
			// Telemetry never blocks a solve.
			logger.Warn("telemetry disabled", slog.String("error", err.Error()))
		} else {
			a.metrics = telemetry.NewSolveMetrics(ms)
			a.closers = append(a.closers, ms.Close, a.metrics.Close)
			solverOpts = append(solverOpts, solver.WithMetrics(a.metrics))
		}
	}

	s, err := solver.New(p, solverOpts...)
	if err != nil {
		return nil, err
	}
	a.solver = s

	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
