package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"tracktime/internal/conversation"
	"tracktime/internal/database"
	"tracktime/internal/redmine"
)

// commitDraft pushes a completed draft to Redmine and mirrors the accepted
// entry locally. The local row is written only with the id Redmine assigned;
// on rejection nothing is persisted. When the local insert fails after remote
// acceptance the entry still counts as committed and the mirror catches up on
// the next sync.
func commitDraft(ctx context.Context, store database.Store, client redmine.Client, log *slog.Logger, draft conversation.Draft) (int64, error) {
	user, err := store.GetUser(ctx, draft.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to load user %d: %w", draft.UserID, err)
	}
	if user == nil || user.Authkey == "" {
		return 0, fmt.Errorf("user %d has no auth key", draft.UserID)
	}

	entryID, err := client.CreateTimeEntry(ctx, user.Authkey,
		draft.IssueID, draft.SpentOn, draft.Hours, draft.Comments)
	if err != nil {
		return 0, fmt.Errorf("redmine rejected time entry: %w", err)
	}

	entry := &database.TimeEntry{
		ID:       entryID,
		UserID:   draft.UserID,
		IssueID:  draft.IssueID,
		SpentOn:  draft.SpentOn,
		Hours:    draft.Hours,
		Comments: draft.Comments,
	}
	if err := store.SaveTimeEntry(ctx, entry); err != nil {
		log.ErrorContext(ctx, "Failed to mirror committed entry",
			"entry_id", entryID, "user_id", draft.UserID, "error", err)
	}

	return entryID, nil
}
