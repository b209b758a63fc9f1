// Package cleanup runs periodic housekeeping: expired sessions are
// pruned and stale usage counters are rolled over to the current period.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/skillcoin/learn-engine/internal/auth"
	"github.com/skillcoin/learn-engine/internal/subscription"
)

// Worker handles periodic cleanup of expired and stale records
type Worker struct {
	auth     *auth.Service
	usage    *subscription.Service
	interval time.Duration
}

// NewWorker creates a new cleanup worker
func NewWorker(authSvc *auth.Service, usage *subscription.Service, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &Worker{
		auth:     authSvc,
		usage:    usage,
		interval: interval,
	}
}

// Start begins the cleanup worker in a goroutine
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// run is the main loop for the cleanup worker
func (w *Worker) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start
	w.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

// cleanup runs one housekeeping cycle
func (w *Worker) cleanup(ctx context.Context) {
	slog.Debug("running cleanup cycle")

	pruned, err := w.auth.PruneExpiredSessions(ctx)
	if err != nil {
		slog.Error("failed to prune expired sessions", "error", err)
	} else if pruned > 0 {
		slog.Info("pruned expired sessions", "count", pruned)
	}

	reset, err := w.usage.RolloverStale(ctx, time.Now())
	if err != nil {
		slog.Error("failed to roll over usage stats", "error", err)
	} else if reset > 0 {
		slog.Info("rolled over stale usage stats", "count", reset)
	}
}
