package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Purger removes records that can no longer be used
type Purger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically purges expired attempt records and reset tokens
type CleanupManager struct {
	purgers  map[string]Purger
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager. Each purger is keyed by the name used in logs.
func NewCleanupManager(
	purgers map[string]Purger,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		purgers:  purgers,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce runs every purger once. A failing purger does not stop the others.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	for name, purger := range cm.purgers {
		cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		rowsDeleted, err := purger.DeleteExpired(cleanupCtx)
		cancel()

		if err != nil {
			cm.logger.Error("cleanup failed", slog.String("target", name), slog.Any("error", err))
			continue
		}

		if rowsDeleted > 0 {
			cm.logger.Info("cleanup completed", slog.String("target", name), slog.Int64("rows_deleted", rowsDeleted))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
