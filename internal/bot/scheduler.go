package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"tracktime/internal/bot/tasks"
)

// Scheduler manages scheduled work using the gocron library. It runs the
// recurring cron tasks from the registry and accepts one-shot delayed jobs,
// which the sync engine uses to stagger fleet syncs.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a new scheduler instance using gocron.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
	}, nil
}

// AddCron registers a recurring task with a five-field cron spec. The task is
// wrapped with start/finish logging.
func (s *Scheduler) AddCron(name, cronSpec string, task tasks.ScheduledTaskFunc) error {
	if cronSpec == "" {
		return fmt.Errorf("task %q has an empty schedule", name)
	}

	_, err := s.scheduler.NewJob(
		gocron.CronJob(cronSpec, false),
		gocron.NewTask(
			func(ctx context.Context, taskName string) {
				s.logger.Info("Running scheduled task", "task_name", taskName)
				startTime := time.Now()
				if taskErr := task(ctx); taskErr != nil {
					s.logger.Error("Scheduled task failed", "task_name", taskName, "error", taskErr)
				}
				s.logger.Info("Finished scheduled task", "task_name", taskName, "duration", time.Since(startTime))
			},
			context.Background(),
			name,
		),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule task %q: %w", name, err)
	}

	s.logger.Info("Scheduled task", "task_name", name, "schedule", cronSpec)
	return nil
}

// RunAfter schedules fn to run once after the given delay. It implements the
// delayed-submission primitive the sync engine staggers fleet jobs with.
func (s *Scheduler) RunAfter(name string, delay time.Duration, fn func(ctx context.Context)) error {
	// gocron rejects one-time jobs whose start time is already in the past,
	// so a zero delay gets a small floor.
	if delay < time.Second {
		delay = time.Second
	}

	_, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(delay))),
		gocron.NewTask(
			func(ctx context.Context) {
				s.logger.Debug("Running delayed job", "job_name", name, "delay", delay)
				fn(ctx)
			},
			context.Background(),
		),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule delayed job %q: %w", name, err)
	}
	return nil
}

// Start begins the scheduler's internal ticking.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started")
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
