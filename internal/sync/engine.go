// Package sync reconciles the local store with the time entries Redmine
// reports for each user. The local database is a mirror: remote state wins on
// every conflict.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tracktime/internal/database"
	"tracktime/internal/redmine"
)

// Deferrer schedules a named function to run once after a delay. It is
// implemented by the bot scheduler.
type Deferrer interface {
	RunAfter(name string, delay time.Duration, fn func(ctx context.Context)) error
}

// Engine copies remote time entries into the local store, either for a single
// spent-on date or for a user's full history. Concurrent requests for the
// same (user, scope) pair collapse into one run.
type Engine struct {
	store    database.Store
	client   redmine.Client
	deferrer Deferrer
	logger   *slog.Logger
	stagger  time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewEngine creates a sync engine. deferrer may be nil, in which case fleet
// syncs run without staggering.
func NewEngine(store database.Store, client redmine.Client, deferrer Deferrer, logger *slog.Logger, stagger time.Duration) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		client:   client,
		deferrer: deferrer,
		logger:   logger.With("component", "sync_engine"),
		stagger:  stagger,
		inflight: make(map[string]struct{}),
	}
}

// jobKey identifies a sync job for deduplication. day is empty for a full
// history sync.
func jobKey(userID int64, day string) string {
	scope := "full"
	if day != "" {
		scope = day
	}
	return fmt.Sprintf("sync:%d:%s", userID, scope)
}

// Enqueue starts an asynchronous sync for one user. day is a spent-on date in
// YYYY-MM-DD format, or empty for full history. It reports false when a job
// with the same (user, scope) key is already in flight.
func (e *Engine) Enqueue(ctx context.Context, userID int64, day string) bool {
	key := jobKey(userID, day)

	e.mu.Lock()
	if _, busy := e.inflight[key]; busy {
		e.mu.Unlock()
		e.logger.DebugContext(ctx, "Sync already in flight, skipping", "key", key)
		return false
	}
	e.inflight[key] = struct{}{}
	e.mu.Unlock()

	go func() {
		defer e.release(key)
		if err := e.SyncUser(ctx, userID, day); err != nil {
			e.logger.ErrorContext(ctx, "Sync job failed", "key", key, "error", err)
		}
	}()
	return true
}

func (e *Engine) release(key string) {
	e.mu.Lock()
	delete(e.inflight, key)
	e.mu.Unlock()
}

// SyncUser runs one merge for a user synchronously. An auth rejection by
// Redmine ends the job quietly so sibling jobs are unaffected; every other
// failure is returned.
func (e *Engine) SyncUser(ctx context.Context, userID int64, day string) error {
	log := e.logger.With("user_id", userID, "scope", jobKey(userID, day))

	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil || user.Authkey == "" {
		log.DebugContext(ctx, "User has no auth key, skipping sync")
		return nil
	}

	remote, err := e.client.ListTimeEntries(ctx, user.Authkey, day)
	if err != nil {
		if errors.Is(err, redmine.ErrUnauthorized) {
			log.WarnContext(ctx, "Redmine rejected auth key, aborting this user's sync")
			return nil
		}
		return fmt.Errorf("failed to list remote time entries: %w", err)
	}
	if len(remote) == 0 {
		log.DebugContext(ctx, "No remote time entries in scope")
		return nil
	}

	// Local entries are loaded without the date filter so a day-scoped run
	// still matches rows created by earlier full syncs.
	issueIDs, err := e.store.AllIssueIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load local issue ids: %w", err)
	}
	local, err := e.store.TimeEntriesForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load local time entries: %w", err)
	}

	knownIssues := make(map[int64]struct{}, len(issueIDs))
	for _, id := range issueIDs {
		knownIssues[id] = struct{}{}
	}
	localByID := make(map[int64]database.TimeEntry, len(local))
	for _, entry := range local {
		localByID[entry.ID] = entry
	}

	var (
		newIssues []database.Issue
		inserts   []database.TimeEntry
		updates   []database.TimeEntry
	)

	for _, r := range remote {
		if _, known := knownIssues[r.IssueID]; !known {
			issue, err := e.client.GetIssue(ctx, user.Authkey, r.IssueID)
			if err != nil {
				if errors.Is(err, redmine.ErrUnauthorized) {
					log.WarnContext(ctx, "Redmine rejected auth key mid-sync, aborting this user's sync")
					return nil
				}
				return fmt.Errorf("failed to fetch issue %d: %w", r.IssueID, err)
			}
			newIssues = append(newIssues, database.Issue{ID: issue.ID, Name: issue.Name})
			knownIssues[r.IssueID] = struct{}{}
		}

		entry := database.TimeEntry{
			ID:       r.ID,
			UserID:   userID,
			IssueID:  r.IssueID,
			SpentOn:  r.SpentOn,
			Hours:    r.Hours,
			Comments: r.Comments,
		}

		existing, found := localByID[r.ID]
		switch {
		case !found:
			inserts = append(inserts, entry)
		case existing.Hours != entry.Hours ||
			existing.Comments != entry.Comments ||
			existing.SpentOn != entry.SpentOn ||
			existing.IssueID != entry.IssueID:
			updates = append(updates, entry)
		}
	}

	if err := e.store.ApplySync(ctx, newIssues, inserts, updates); err != nil {
		return fmt.Errorf("failed to apply sync changes: %w", err)
	}

	log.InfoContext(ctx, "Sync completed",
		"remote", len(remote), "new_issues", len(newIssues),
		"inserted", len(inserts), "updated", len(updates))
	return nil
}

// SyncAll schedules a full-history sync for every known user, spaced one
// stagger interval apart to avoid bursting Redmine.
func (e *Engine) SyncAll(ctx context.Context) error {
	userIDs, err := e.store.AllUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users for fleet sync: %w", err)
	}

	e.logger.InfoContext(ctx, "Scheduling fleet sync", "users", len(userIDs), "stagger", e.stagger)

	for i, userID := range userIDs {
		if e.deferrer == nil {
			e.Enqueue(ctx, userID, "")
			continue
		}

		userID := userID
		delay := time.Duration(i) * e.stagger
		name := jobKey(userID, "")
		if err := e.deferrer.RunAfter(name, delay, func(jobCtx context.Context) {
			e.Enqueue(jobCtx, userID, "")
		}); err != nil {
			e.logger.ErrorContext(ctx, "Failed to schedule user sync", "user_id", userID, "error", err)
		}
	}
	return nil
}
