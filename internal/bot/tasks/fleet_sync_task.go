package tasks

import (
	"context"
	"fmt"
)

// newFleetSyncTask creates the scheduled task that reconciles every known
// user's full Redmine history. The engine staggers the per-user jobs.
func newFleetSyncTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "fleet_sync")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting fleet sync...")

		if err := deps.Engine.SyncAll(ctx); err != nil {
			log.ErrorContext(ctx, "Fleet sync failed", "error", err)
			return fmt.Errorf("fleet sync failed: %w", err)
		}

		log.InfoContext(ctx, "Fleet sync scheduled for all users")
		return nil
	}
}
