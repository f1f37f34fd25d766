package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracktime/internal/conversation"
)

var testNow = time.Date(2026, 8, 31, 15, 4, 5, 0, time.UTC)

func TestDatePickerKeyboard(t *testing.T) {
	kb := datePickerKeyboard(testNow)

	require.Len(t, kb.InlineKeyboard, 4, "eight buttons in rows of two")
	for _, row := range kb.InlineKeyboard {
		assert.Len(t, row, 2)
	}

	first := kb.InlineKeyboard[0][0]
	assert.Equal(t, "Today", first.Text)
	assert.Equal(t, "spent_on:2026-08-31", first.CallbackData)

	second := kb.InlineKeyboard[0][1]
	assert.Equal(t, "Yesterday", second.Text)
	assert.Equal(t, "spent_on:2026-08-30", second.CallbackData)

	last := kb.InlineKeyboard[3][1]
	assert.Equal(t, "24 Aug (Mon)", last.Text)
	assert.Equal(t, "spent_on:2026-08-24", last.CallbackData)
}

func TestIssueKeyboardReversesRanking(t *testing.T) {
	candidates := []conversation.Candidate{
		{ID: 300, Name: "Best"},
		{ID: 200, Name: "Second"},
		{ID: 100, Name: "Third"},
	}

	kb := issueKeyboard(candidates)

	require.Len(t, kb.InlineKeyboard, 3, "one issue per row")
	assert.Equal(t, "Third", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "Second", kb.InlineKeyboard[1][0].Text)
	assert.Equal(t, "Best", kb.InlineKeyboard[2][0].Text, "best candidate sits at the bottom")
	assert.Equal(t, "issue:300", kb.InlineKeyboard[2][0].CallbackData)
}

func TestHoursKeyboard(t *testing.T) {
	kb := hoursKeyboard(false)

	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "0.1", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "hours:0.1", kb.InlineKeyboard[0][0].CallbackData)

	lastRow := kb.InlineKeyboard[1]
	assert.Equal(t, "Reset", lastRow[len(lastRow)-1].Text)
	assert.Equal(t, "hours:reset", lastRow[len(lastRow)-1].CallbackData)

	withDone := hoursKeyboard(true)
	require.Len(t, withDone.InlineKeyboard, 3)
	doneRow := withDone.InlineKeyboard[2]
	require.Len(t, doneRow, 1)
	assert.Equal(t, "Done", doneRow[0].Text)
	assert.Equal(t, "hours:done", doneRow[0].CallbackData)
}

func TestHumanizeDate(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"today", testNow, "Today"},
		{"today other hour", testNow.Add(-6 * time.Hour), "Today"},
		{"yesterday", testNow.AddDate(0, 0, -1), "Yesterday"},
		{"tomorrow", testNow.AddDate(0, 0, 1), "Tomorrow"},
		{"last week", time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), "25 Aug (Tue)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, humanizeDate(tc.date, testNow))
		})
	}
}

func TestDraftSummary(t *testing.T) {
	empty := conversation.Draft{}
	assert.Equal(t, "Here's what I have so far:\nNothing yet\n", draftSummary(empty, testNow))

	full := conversation.Draft{
		IssueName: "Fix login",
		SpentOn:   "2026-08-30",
		Hours:     2.5,
		Comments:  "reviews",
	}
	got := draftSummary(full, testNow)
	assert.Contains(t, got, "Issue — Fix login")
	assert.Contains(t, got, "Date — Yesterday")
	assert.Contains(t, got, "Hours — 2.5")
	assert.Contains(t, got, "Comment — reviews")
}
