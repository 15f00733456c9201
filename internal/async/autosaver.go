package async

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/pathmap/internal/logging"
)

// DefaultSaveInterval is how often a dirty graph is written in the background.
const DefaultSaveInterval = 30 * time.Second

// SaveFunc persists the graph.
type SaveFunc func(ctx context.Context) error

// AutosaverConfig configures the Autosaver.
type AutosaverConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Autosaver periodically saves the graph while changes are pending, and once
// more on Stop.
type Autosaver struct {
	config AutosaverConfig
	save   SaveFunc
	status *SaveStatus
	logger *slog.Logger

	// dirty counts MarkDirty calls; saved is the count covered by the last
	// successful save.
	dirty   atomic.Int64
	saved   int64
	flushMu sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewAutosaver creates an autosaver that calls save.
func NewAutosaver(cfg AutosaverConfig, save SaveFunc) *Autosaver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSaveInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Autosaver{
		config: cfg,
		save:   save,
		status: NewSaveStatus(),
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Status returns the save status tracker.
func (a *Autosaver) Status() *SaveStatus {
	return a.status
}

// IsRunning returns true while the background loop is active.
func (a *Autosaver) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// MarkDirty records that the graph changed since the last save.
func (a *Autosaver) MarkDirty() {
	a.dirty.Add(1)
	a.status.SetPending(true)
}

// Start begins the background loop. It is non-blocking and a no-op when
// already started.
func (a *Autosaver) Start(ctx context.Context) {
	a.mu.Lock()
	if a.running || a.stopped {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	go a.run(ctx)
}

func (a *Autosaver) run(ctx context.Context) {
	defer close(a.doneCh)
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				a.logger.Warn("background save failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Flush saves now if there are pending changes.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	gen := a.dirty.Load()
	if gen == a.saved {
		return nil
	}

	a.status.Begin()
	began := time.Now()
	if err := a.save(ctx); err != nil {
		a.status.Fail(err.Error())
		return err
	}

	a.saved = gen
	a.status.Done(time.Now(), time.Since(began))
	a.status.SetPending(a.dirty.Load() != gen)
	a.logger.Debug("background save complete", slog.Duration("duration", time.Since(began)))
	return nil
}

// Stop ends the background loop and performs a final save. Later calls
// only retry the save.
func (a *Autosaver) Stop(ctx context.Context) error {
	a.mu.Lock()
	wasRunning := a.running
	if !a.stopped {
		a.stopped = true
		close(a.stopCh)
	}
	a.mu.Unlock()

	if wasRunning {
		<-a.doneCh
	}
	return a.Flush(ctx)
}
