package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/scarif/internal/clock"
)

// DeclineLog is the slice of the decline repository the cleanup task needs.
type DeclineLog interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically prunes payment declines that have aged past
// the fraud window. Expiry itself is evaluated lazily at decision time; this
// only keeps the decline log from growing without bound.
type CleanupManager struct {
	declineRepo DeclineLog
	clock       clock.Clock
	retention   time.Duration
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	declineRepo DeclineLog,
	clk clock.Clock,
	retention time.Duration,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		declineRepo: declineRepo,
		clock:       clk,
		retention:   retention,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup removes declines that can never count toward a block again
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cm.clock.Now().Add(-cm.retention)
	rowsDeleted, err := cm.declineRepo.DeleteBefore(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to prune stale declines", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("stale decline cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
