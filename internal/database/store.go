package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations. Methods accept
// context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// FindOrCreateUser returns the user with the given id, creating the row
	// with an empty authkey if it does not exist yet.
	FindOrCreateUser(ctx context.Context, userID int64) (*User, error)

	// GetUser retrieves a user by id. Returns nil, nil if not found.
	GetUser(ctx context.Context, userID int64) (*User, error)

	// SaveAuthKey stores the Redmine API key for an existing user.
	SaveAuthKey(ctx context.Context, userID int64, authkey string) error

	// AllUserIDs returns the ids of every known user.
	AllUserIDs(ctx context.Context) ([]int64, error)

	// AllIssueIDs returns the ids of every locally mirrored issue.
	AllIssueIDs(ctx context.Context) ([]int64, error)

	// RecentIssues returns up to limit issues the user has logged time
	// against, ranked by most recent entry id first, then by entry count.
	RecentIssues(ctx context.Context, userID int64, limit int) ([]Issue, error)

	// TimeEntriesForUser returns all locally mirrored time entries for a user.
	TimeEntriesForUser(ctx context.Context, userID int64) ([]TimeEntry, error)

	// SaveTimeEntry inserts a single confirmed time entry. The entry must
	// already carry the id assigned by Redmine.
	SaveTimeEntry(ctx context.Context, entry *TimeEntry) error

	// ApplySync commits the result of a sync run in one transaction: new
	// issues, new time entries, and in-place updates of changed entries.
	ApplySync(ctx context.Context, issues []Issue, inserts []TimeEntry, updates []TimeEntry) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindOrCreateUser returns the user with the given id, inserting it first if
// it does not exist.
func (s *sqlxStore) FindOrCreateUser(ctx context.Context, userID int64) (*User, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &User{ID: userID}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO users (id, authkey) VALUES (:id, :authkey);`, user)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to create user %d: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "Created user", "user_id", userID)
	return user, nil
}

// GetUser retrieves a user by id. Returns nil, nil if not found.
func (s *sqlxStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, authkey FROM users WHERE id = ?;`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "Error getting user", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return &user, nil
}

// SaveAuthKey stores the Redmine API key for an existing user.
func (s *sqlxStore) SaveAuthKey(ctx context.Context, userID int64, authkey string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET authkey = ? WHERE id = ?;`, authkey, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving auth key", "user_id", userID, "error", err)
		return fmt.Errorf("failed to save auth key for user %d: %w", userID, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("no user with id %d to save auth key for", userID)
	}

	s.logger.DebugContext(ctx, "Auth key saved", "user_id", userID)
	return nil
}

// AllUserIDs returns the ids of every known user.
func (s *sqlxStore) AllUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM users ORDER BY id;`); err != nil {
		s.logger.ErrorContext(ctx, "Error listing user ids", "error", err)
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return ids, nil
}

// AllIssueIDs returns the ids of every locally mirrored issue.
func (s *sqlxStore) AllIssueIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM issues ORDER BY id;`); err != nil {
		s.logger.ErrorContext(ctx, "Error listing issue ids", "error", err)
		return nil, fmt.Errorf("failed to list issue ids: %w", err)
	}
	return ids, nil
}

// RecentIssues returns up to limit issues the user has logged time against.
// Ranking uses the highest time-entry id per issue as a recency proxy, with
// entry count as the tie breaker.
func (s *sqlxStore) RecentIssues(ctx context.Context, userID int64, limit int) ([]Issue, error) {
	if limit <= 0 {
		limit = 10
	}

	var issues []Issue
	query := `
        SELECT i.id, i.name
        FROM issues i
        JOIN (
            SELECT issue_id, MAX(id) AS max_id, COUNT(*) AS cnt
            FROM time_entries
            WHERE user_id = ?
            GROUP BY issue_id
            ORDER BY max_id DESC, cnt DESC
            LIMIT ?
        ) ranked ON ranked.issue_id = i.id
        ORDER BY ranked.max_id DESC, ranked.cnt DESC;
    `
	if err := s.db.SelectContext(ctx, &issues, query, userID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error querying recent issues", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to query recent issues for user %d: %w", userID, err)
	}

	s.logger.DebugContext(ctx, "Loaded recent issues", "user_id", userID, "count", len(issues))
	return issues, nil
}

// TimeEntriesForUser returns all locally mirrored time entries for a user.
func (s *sqlxStore) TimeEntriesForUser(ctx context.Context, userID int64) ([]TimeEntry, error) {
	var entries []TimeEntry
	query := `
        SELECT id, user_id, issue_id, spent_on, hours, comments
        FROM time_entries
        WHERE user_id = ?
        ORDER BY id;
    `
	if err := s.db.SelectContext(ctx, &entries, query, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error querying time entries", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to query time entries for user %d: %w", userID, err)
	}
	return entries, nil
}

// SaveTimeEntry inserts a single confirmed time entry.
func (s *sqlxStore) SaveTimeEntry(ctx context.Context, entry *TimeEntry) error {
	if entry == nil {
		return fmt.Errorf("cannot save nil time entry")
	}
	if entry.ID == 0 {
		return fmt.Errorf("time entry must carry the id assigned by the tracker")
	}
	if entry.UserID == 0 {
		return fmt.Errorf("time entry must have a non-zero user_id")
	}
	if entry.IssueID == 0 {
		return fmt.Errorf("time entry must have a non-zero issue_id")
	}
	if entry.Hours <= 0 {
		return fmt.Errorf("time entry must have positive hours")
	}

	query := `
        INSERT INTO time_entries (id, user_id, issue_id, spent_on, hours, comments)
        VALUES (:id, :user_id, :issue_id, :spent_on, :hours, :comments);
    `
	if _, err := s.db.NamedExecContext(ctx, query, entry); err != nil {
		s.logger.ErrorContext(ctx, "Error saving time entry",
			"entry_id", entry.ID, "user_id", entry.UserID, "error", err)
		return fmt.Errorf("failed to save time entry %d: %w", entry.ID, err)
	}

	s.logger.DebugContext(ctx, "Time entry saved",
		"entry_id", entry.ID, "user_id", entry.UserID, "issue_id", entry.IssueID)
	return nil
}

// ApplySync commits the result of a sync run in one transaction.
func (s *sqlxStore) ApplySync(ctx context.Context, issues []Issue, inserts []TimeEntry, updates []TimeEntry) error {
	if len(issues) == 0 && len(inserts) == 0 && len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin sync transaction", "error", err)
		return fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back sync transaction", "error", rollbackErr)
			}
		}
	}()

	for i := range issues {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO issues (id, name) VALUES (:id, :name);`, &issues[i])
		if err != nil {
			return fmt.Errorf("failed to insert issue %d: %w", issues[i].ID, err)
		}
	}

	for i := range inserts {
		_, err := tx.NamedExecContext(ctx, `
            INSERT INTO time_entries (id, user_id, issue_id, spent_on, hours, comments)
            VALUES (:id, :user_id, :issue_id, :spent_on, :hours, :comments);
        `, &inserts[i])
		if err != nil {
			return fmt.Errorf("failed to insert time entry %d: %w", inserts[i].ID, err)
		}
	}

	for i := range updates {
		_, err := tx.NamedExecContext(ctx, `
            UPDATE time_entries
            SET issue_id = :issue_id, spent_on = :spent_on, hours = :hours, comments = :comments
            WHERE id = :id;
        `, &updates[i])
		if err != nil {
			return fmt.Errorf("failed to update time entry %d: %w", updates[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit sync transaction", "error", err)
		return fmt.Errorf("failed to commit sync transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Sync changes committed",
		"issues", len(issues), "inserted", len(inserts), "updated", len(updates))
	return nil
}

// RunSQLMaintenance performs database maintenance tasks.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	for _, stmt := range []string{"ANALYZE;", "VACUUM;"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.ErrorContext(ctx, "SQL maintenance statement failed", "statement", stmt, "error", err)
			return fmt.Errorf("maintenance statement %q failed: %w", stmt, err)
		}
	}
	s.logger.InfoContext(ctx, "SQL maintenance completed")
	return nil
}
