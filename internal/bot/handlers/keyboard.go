package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"tracktime/internal/conversation"
)

// datePickerDays is how many days back from today the picker offers.
const datePickerDays = 7

// datePickerKeyboard builds the spent-on picker covering today and the seven
// previous days, newest first, two buttons per row.
func datePickerKeyboard(now time.Time) *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, datePickerDays+1)
	for offset := 0; offset >= -datePickerDays; offset-- {
		day := now.AddDate(0, 0, offset)
		buttons = append(buttons, models.InlineKeyboardButton{
			Text:         humanizeDate(day, now),
			CallbackData: CallbackSpentOn + day.Format(conversation.DateLayout),
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: buildMenu(buttons, 2)}
}

// issueKeyboard builds the candidate list, one button per row. The candidates
// arrive ranked best-first; the list is reversed so the most relevant issue
// ends up as the bottom button, next to the user's thumb.
func issueKeyboard(candidates []conversation.Candidate) *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		buttons = append(buttons, models.InlineKeyboardButton{
			Text:         candidates[i].Name,
			CallbackData: CallbackIssue + strconv.FormatInt(candidates[i].ID, 10),
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: buildMenu(buttons, 1)}
}

// hoursKeyboard builds the hour-increment pad with a reset button. The Done
// button only appears once there are hours to commit.
func hoursKeyboard(hasDone bool) *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, len(conversation.HourIncrements)+1)
	for _, h := range conversation.HourIncrements {
		label := strconv.FormatFloat(h, 'f', -1, 64)
		buttons = append(buttons, models.InlineKeyboardButton{
			Text:         label,
			CallbackData: CallbackHours + label,
		})
	}
	buttons = append(buttons, models.InlineKeyboardButton{
		Text:         "Reset",
		CallbackData: CallbackHours + hoursReset,
	})

	menu := buildMenu(buttons, 4)
	if hasDone {
		menu = append(menu, []models.InlineKeyboardButton{{
			Text:         "Done",
			CallbackData: CallbackHours + hoursDone,
		}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: menu}
}

// buildMenu splits buttons into rows of nCols.
func buildMenu(buttons []models.InlineKeyboardButton, nCols int) [][]models.InlineKeyboardButton {
	menu := make([][]models.InlineKeyboardButton, 0, (len(buttons)+nCols-1)/nCols)
	for i := 0; i < len(buttons); i += nCols {
		end := i + nCols
		if end > len(buttons) {
			end = len(buttons)
		}
		menu = append(menu, buttons[i:end])
	}
	return menu
}

// humanizeDate renders a date as Today/Yesterday/Tomorrow when it is near
// now, otherwise like "2 Jan (Mon)".
func humanizeDate(date, now time.Time) string {
	switch {
	case sameDay(date, now):
		return "Today"
	case sameDay(date, now.AddDate(0, 0, -1)):
		return "Yesterday"
	case sameDay(date, now.AddDate(0, 0, 1)):
		return "Tomorrow"
	}
	return fmt.Sprintf("%d %s (%s)", date.Day(), date.Format("Jan"), date.Format("Mon"))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// draftSummary renders the "here's what I have so far" block shown above each
// prompt as the draft fills in.
func draftSummary(d conversation.Draft, now time.Time) string {
	var lines []string
	if d.IssueName != "" {
		lines = append(lines, "Issue — "+d.IssueName)
	}
	if d.SpentOn != "" {
		label := d.SpentOn
		if date, err := time.Parse(conversation.DateLayout, d.SpentOn); err == nil {
			label = humanizeDate(date, now)
		}
		lines = append(lines, "Date — "+label)
	}
	if d.Hours > 0 {
		lines = append(lines, "Hours — "+strconv.FormatFloat(d.Hours, 'f', -1, 64))
	}
	if d.Comments != "" {
		lines = append(lines, "Comment — "+d.Comments)
	}
	if len(lines) == 0 {
		lines = append(lines, "Nothing yet")
	}

	return "Here's what I have so far:\n" + strings.Join(lines, "\n") + "\n"
}
