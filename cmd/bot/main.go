// Package main contains the entrypoint for the tracktime Telegram bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"tracktime/internal/bot"
	"tracktime/internal/bot/handlers"
	"tracktime/internal/bot/tasks"
	"tracktime/internal/config"
	"tracktime/internal/conversation"
	"tracktime/internal/database"
	"tracktime/internal/logger"
	"tracktime/internal/redmine"
	syncengine "tracktime/internal/sync"
	"tracktime/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// redmine client, bot, scheduler), handles graceful shutdown, and returns an
// exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	httpClient, err := newHTTPClient(cfg.Proxy, cfg.Redmine.Timeout)
	if err != nil {
		log.Error("Failed to build HTTP client", "error", err)
		return 1
	}

	rm, err := redmine.NewClient(cfg.Redmine.BaseURL, cfg.Redmine.Timeout, httpClient, log)
	if err != nil {
		log.Error("Failed to create Redmine client", "base_url", cfg.Redmine.BaseURL, "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	engine := syncengine.NewEngine(store, rm, sched, log, cfg.Scheduler.FleetSyncStagger)
	drafts := conversation.NewManager()

	hDeps := handlers.HandlerDeps{
		Logger:  log,
		Config:  cfg,
		Store:   store,
		Redmine: rm,
		Engine:  engine,
		Drafts:  drafts,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Engine: engine,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewTextHandler(hDeps)),
	}
	if cfg.Proxy.URL != "" {
		botOpts = append(botOpts, tgbot.WithHTTPClient(time.Minute, httpClient))
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllHandlers(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	taskFuncs := tasks.RegisterAllTasks(tDeps)
	schedules := map[string]string{
		"fleet_sync":      cfg.Scheduler.FleetSyncCron,
		"sql_maintenance": cfg.Scheduler.SQLMaintenanceCron,
	}
	for name, cronSpec := range schedules {
		taskFunc, ok := taskFuncs[name]
		if !ok {
			log.Warn("Task configured but not registered, skipping", "task_name", name)
			continue
		}
		if err := sched.AddCron(name, cronSpec, taskFunc); err != nil {
			log.Error("Failed to schedule task", "task_name", name, "error", err)
			return 1
		}
	}

	app := bot.NewBot(log, engine, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// newHTTPClient builds the outbound HTTP client, routed through the
// configured proxy when one is set.
func newHTTPClient(proxy config.ProxyConfig, timeout time.Duration) (*http.Client, error) {
	if proxy.URL == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	proxyURL, err := url.Parse(proxy.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", proxy.URL, err)
	}
	if proxy.Username != "" {
		proxyURL.User = url.UserPassword(proxy.Username, proxy.Password)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}, nil
}
