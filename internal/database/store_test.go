package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "tracktime_test.db"))
	require.NoError(t, err, "opening test database")
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, nil)
}

func TestFindOrCreateUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user, err := store.FindOrCreateUser(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(42), user.ID)
	assert.Empty(t, user.Authkey)

	// Second call returns the existing row, keeping any saved key.
	require.NoError(t, store.SaveAuthKey(ctx, 42, "secret-key"))

	again, err := store.FindOrCreateUser(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "secret-key", again.Authkey)

	_, err = store.FindOrCreateUser(ctx, 0)
	assert.Error(t, err, "zero user id must be rejected")
}

func TestGetUserNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user, err := store.GetUser(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSaveAuthKeyUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.SaveAuthKey(ctx, 123, "key")
	assert.Error(t, err, "saving a key for a user that was never created must fail")
}

func TestAllUserIDs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ids, err := store.AllUserIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []int64{7, 3, 11} {
		_, err := store.FindOrCreateUser(ctx, id)
		require.NoError(t, err)
	}

	ids, err = store.AllUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7, 11}, ids)
}

func TestSaveTimeEntryValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.FindOrCreateUser(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, store.ApplySync(ctx, []Issue{{ID: 100, Name: "Task 1"}}, nil, nil))

	tests := []struct {
		name  string
		entry *TimeEntry
	}{
		{"nil entry", nil},
		{"missing tracker id", &TimeEntry{UserID: 42, IssueID: 100, SpentOn: "2026-08-31", Hours: 1}},
		{"missing user id", &TimeEntry{ID: 1, IssueID: 100, SpentOn: "2026-08-31", Hours: 1}},
		{"missing issue id", &TimeEntry{ID: 1, UserID: 42, SpentOn: "2026-08-31", Hours: 1}},
		{"zero hours", &TimeEntry{ID: 1, UserID: 42, IssueID: 100, SpentOn: "2026-08-31"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, store.SaveTimeEntry(ctx, tc.entry))
		})
	}

	entry := &TimeEntry{ID: 1, UserID: 42, IssueID: 100, SpentOn: "2026-08-31", Hours: 1.5, Comments: "review"}
	require.NoError(t, store.SaveTimeEntry(ctx, entry))

	entries, err := store.TimeEntriesForUser(ctx, 42)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, *entry, entries[0])
}

func TestRecentIssuesRanking(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.FindOrCreateUser(ctx, 42)
	require.NoError(t, err)

	issues := []Issue{
		{ID: 100, Name: "Alpha"},
		{ID: 200, Name: "Beta"},
		{ID: 300, Name: "Gamma"},
	}
	// Gamma carries the newest entry, Alpha the second newest, Beta only an
	// old one. Recency wins regardless of how often Beta was logged.
	entries := []TimeEntry{
		{ID: 10, UserID: 42, IssueID: 100, SpentOn: "2026-08-01", Hours: 1},
		{ID: 15, UserID: 42, IssueID: 300, SpentOn: "2026-08-02", Hours: 1},
		{ID: 20, UserID: 42, IssueID: 200, SpentOn: "2026-08-03", Hours: 1},
		{ID: 30, UserID: 42, IssueID: 300, SpentOn: "2026-08-10", Hours: 2},
		{ID: 40, UserID: 42, IssueID: 100, SpentOn: "2026-08-15", Hours: 1},
		{ID: 50, UserID: 42, IssueID: 300, SpentOn: "2026-08-20", Hours: 0.5},
	}
	require.NoError(t, store.ApplySync(ctx, issues, entries, nil))

	got, err := store.RecentIssues(ctx, 42, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []Issue{
		{ID: 300, Name: "Gamma"},
		{ID: 100, Name: "Alpha"},
		{ID: 200, Name: "Beta"},
	}, got)

	// The limit caps the list at the top-ranked issues.
	got, err = store.RecentIssues(ctx, 42, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(300), got[0].ID)
	assert.Equal(t, int64(100), got[1].ID)
}

func TestRecentIssuesScopedToUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, id := range []int64{1, 2} {
		_, err := store.FindOrCreateUser(ctx, id)
		require.NoError(t, err)
	}
	issues := []Issue{{ID: 100, Name: "Mine"}, {ID: 200, Name: "Theirs"}}
	entries := []TimeEntry{
		{ID: 1, UserID: 1, IssueID: 100, SpentOn: "2026-08-01", Hours: 1},
		{ID: 2, UserID: 2, IssueID: 200, SpentOn: "2026-08-02", Hours: 1},
	}
	require.NoError(t, store.ApplySync(ctx, issues, entries, nil))

	got, err := store.RecentIssues(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(100), got[0].ID)
}

func TestApplySyncUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.FindOrCreateUser(ctx, 42)
	require.NoError(t, err)

	issues := []Issue{{ID: 100, Name: "Task 1"}}
	inserts := []TimeEntry{{ID: 1, UserID: 42, IssueID: 100, SpentOn: "2026-08-01", Hours: 2, Comments: "draft"}}
	require.NoError(t, store.ApplySync(ctx, issues, inserts, nil))

	updates := []TimeEntry{{ID: 1, UserID: 42, IssueID: 100, SpentOn: "2026-08-01", Hours: 3, Comments: "corrected"}}
	require.NoError(t, store.ApplySync(ctx, nil, nil, updates))

	entries, err := store.TimeEntriesForUser(ctx, 42)
	require.NoError(t, err)
	require.Len(t, entries, 1, "update must not create a second row")
	assert.Equal(t, 3.0, entries[0].Hours)
	assert.Equal(t, "corrected", entries[0].Comments)
}

func TestApplySyncAtomicity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.FindOrCreateUser(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, store.ApplySync(ctx, []Issue{{ID: 100, Name: "Task 1"}}, nil, nil))

	// The second insert collides on the primary key, so the whole batch
	// including the first entry must be rolled back.
	inserts := []TimeEntry{
		{ID: 1, UserID: 42, IssueID: 100, SpentOn: "2026-08-01", Hours: 1},
		{ID: 1, UserID: 42, IssueID: 100, SpentOn: "2026-08-02", Hours: 2},
	}
	require.Error(t, store.ApplySync(ctx, nil, inserts, nil))

	entries, err := store.TimeEntriesForUser(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApplySyncEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.ApplySync(ctx, nil, nil, nil))
}

func TestAllIssueIDs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ids, err := store.AllIssueIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	issues := []Issue{{ID: 200, Name: "Beta"}, {ID: 100, Name: "Alpha"}}
	require.NoError(t, store.ApplySync(ctx, issues, nil, nil))

	ids, err = store.AllIssueIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, ids)
}

func TestRunSQLMaintenance(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	assert.NoError(t, store.RunSQLMaintenance(ctx))
}

func TestExtractDBNameFromPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"plain path", "./data/bot.db", "./data/bot.db"},
		{"file scheme", "file:data/bot.db", "data/bot.db"},
		{"with query", "file:data/bot.db?cache=shared", "data/bot.db"},
		{"escaped", "file:data%20dir/bot.db", "data dir/bot.db"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractDBNameFromPath(tc.path))
		})
	}
}
