package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turdhunter-api/internal/config"
)

// Pinger is a storage backend that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthWorker periodically pings the storage backend and records the result
type HealthWorker struct {
	store   Pinger
	config  *config.HealthConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
	ready   atomic.Bool
}

// NewHealthWorker creates a new health worker
func NewHealthWorker(store Pinger, cfg *config.HealthConfig, logger *slog.Logger) *HealthWorker {
	return &HealthWorker{
		store:  store,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs one check immediately and then begins the background loop
func (w *HealthWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.CheckOnce(ctx)
	w.logger.Info("health worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background loop
func (w *HealthWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("health worker stopped")
	return nil
}

// run is the main worker loop
func (w *HealthWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.CheckOnce(ctx)
		}
	}
}

// CheckOnce pings the backend and updates readiness, logging transitions
func (w *HealthWorker) CheckOnce(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	err := w.store.Ping(pingCtx)
	was := w.ready.Swap(err == nil)

	switch {
	case err != nil && was:
		w.logger.Warn("storage backend unreachable", "error", err)
	case err == nil && !was:
		w.logger.Info("storage backend reachable")
	}
}

// Ready reports whether the last ping succeeded
func (w *HealthWorker) Ready() bool {
	return w.ready.Load()
}

// IsRunning returns whether the worker is currently running
func (w *HealthWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
