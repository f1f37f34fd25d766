package handlers

import (
	"log/slog"

	"tracktime/internal/config"
	"tracktime/internal/conversation"
	"tracktime/internal/database"
	"tracktime/internal/redmine"
	"tracktime/internal/sync"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Store   database.Store
	Redmine redmine.Client
	Engine  *sync.Engine
	Drafts  *conversation.Manager
}
