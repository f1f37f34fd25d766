// Package tasks implements the scheduled tasks of the tracktime bot: the
// daily fleet sync and periodic database maintenance.
package tasks

import (
	"log/slog"

	"tracktime/internal/database"
	"tracktime/internal/sync"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Engine *sync.Engine
}
