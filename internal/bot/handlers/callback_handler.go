package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tracktime/internal/conversation"
)

// NewSpentOnCallbackHandler returns the handler for date-picker taps.
func NewSpentOnCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return spentOnCallbackHandler{deps}.Handle
}

type spentOnCallbackHandler struct {
	deps HandlerDeps
}

func (h spentOnCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "callback_spent_on")

	q := update.CallbackQuery
	if q == nil {
		return
	}
	answerCallback(ctx, b, log, q.ID)

	userID := q.From.ID
	date := strings.TrimPrefix(q.Data, CallbackSpentOn)

	issues, err := h.deps.Store.RecentIssues(ctx, userID, 10)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load issue suggestions", "user_id", userID, "error", err)
		h.failDialogue(ctx, b, log, userID, h.deps.Config.Messages.GeneralError)
		return
	}

	if len(issues) == 0 {
		log.InfoContext(ctx, "No issue suggestions for user, ending dialogue", "user_id", userID)
		h.failDialogue(ctx, b, log, userID, h.deps.Config.Messages.NoIssues)
		return
	}

	candidates := make([]conversation.Candidate, 0, len(issues))
	for _, issue := range issues {
		candidates = append(candidates, conversation.Candidate{ID: issue.ID, Name: issue.Name})
	}

	if err := h.deps.Drafts.Update(userID, func(d *conversation.Draft) error {
		return d.ChooseSpentOn(date, candidates)
	}); err != nil {
		log.DebugContext(ctx, "Ignoring date tap", "user_id", userID, "error", err)
		return
	}

	draft, ok := h.deps.Drafts.Peek(userID)
	if !ok {
		return
	}
	editPrompt(ctx, b, log, draft,
		draftSummary(draft, time.Now())+h.deps.Config.Messages.AskIssue,
		issueKeyboard(candidates))
}

// failDialogue edits the prompt into a terminal notice and drops the draft.
func (h spentOnCallbackHandler) failDialogue(ctx context.Context, b *bot.Bot, log *slog.Logger, userID int64, text string) {
	if draft, ok := h.deps.Drafts.Peek(userID); ok {
		editPrompt(ctx, b, log, draft, text, nil)
	}
	h.deps.Drafts.Clear(userID)
}

// NewIssueCallbackHandler returns the handler for issue-list taps.
func NewIssueCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return issueCallbackHandler{deps}.Handle
}

type issueCallbackHandler struct {
	deps HandlerDeps
}

func (h issueCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "callback_issue")

	q := update.CallbackQuery
	if q == nil {
		return
	}
	answerCallback(ctx, b, log, q.ID)

	userID := q.From.ID
	issueID, err := strconv.ParseInt(strings.TrimPrefix(q.Data, CallbackIssue), 10, 64)
	if err != nil {
		log.WarnContext(ctx, "Malformed issue callback data", "data", q.Data, "error", err)
		return
	}

	if err := h.deps.Drafts.Update(userID, func(d *conversation.Draft) error {
		return d.ChooseIssue(issueID)
	}); err != nil {
		log.DebugContext(ctx, "Ignoring issue tap", "user_id", userID, "issue_id", issueID, "error", err)
		return
	}

	draft, ok := h.deps.Drafts.Peek(userID)
	if !ok {
		return
	}
	editPrompt(ctx, b, log, draft,
		draftSummary(draft, time.Now())+h.deps.Config.Messages.AskComments, nil)
}

// NewHoursCallbackHandler returns the handler for hour-pad taps: increments,
// reset, and the final Done commit.
func NewHoursCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return hoursCallbackHandler{deps}.Handle
}

type hoursCallbackHandler struct {
	deps HandlerDeps
}

func (h hoursCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "callback_hours")

	q := update.CallbackQuery
	if q == nil {
		return
	}
	answerCallback(ctx, b, log, q.ID)

	userID := q.From.ID
	action := strings.TrimPrefix(q.Data, CallbackHours)

	switch action {
	case hoursDone:
		h.commit(ctx, b, log, userID)
	case hoursReset:
		if err := h.deps.Drafts.Update(userID, func(d *conversation.Draft) error {
			return d.ResetHours()
		}); err != nil {
			log.DebugContext(ctx, "Ignoring reset tap", "user_id", userID, "error", err)
			return
		}
		h.refreshPad(ctx, b, log, userID)
	default:
		increment, err := strconv.ParseFloat(action, 64)
		if err != nil {
			log.WarnContext(ctx, "Malformed hours callback data", "data", q.Data, "error", err)
			return
		}
		if err := h.deps.Drafts.Update(userID, func(d *conversation.Draft) error {
			return d.AddHours(increment)
		}); err != nil {
			log.DebugContext(ctx, "Ignoring hours tap", "user_id", userID, "error", err)
			return
		}
		h.refreshPad(ctx, b, log, userID)
	}
}

// refreshPad re-renders the hour pad after an increment or reset.
func (h hoursCallbackHandler) refreshPad(ctx context.Context, b *bot.Bot, log *slog.Logger, userID int64) {
	draft, ok := h.deps.Drafts.Peek(userID)
	if !ok {
		return
	}
	editPrompt(ctx, b, log, draft,
		draftSummary(draft, time.Now())+h.deps.Config.Messages.AskHours,
		hoursKeyboard(draft.Hours > 0))
}

// commit saves the assembled entry: Redmine first, then the local mirror.
// The local row is written only with the id Redmine assigned; on rejection
// nothing is persisted and the dialogue ends.
func (h hoursCallbackHandler) commit(ctx context.Context, b *bot.Bot, log *slog.Logger, userID int64) {
	draft, ok := h.deps.Drafts.Peek(userID)
	if !ok || !draft.ReadyToCommit() {
		log.DebugContext(ctx, "Ignoring done tap without committable draft", "user_id", userID)
		return
	}

	entryID, err := commitDraft(ctx, h.deps.Store, h.deps.Redmine, log, draft)
	if err != nil {
		log.WarnContext(ctx, "Failed to commit time entry",
			"user_id", userID, "issue_id", draft.IssueID, "error", err)
		editPrompt(ctx, b, log, draft, h.deps.Config.Messages.EntryFailed, nil)
		h.deps.Drafts.Clear(userID)
		return
	}

	log.InfoContext(ctx, "Time entry committed",
		"entry_id", entryID, "user_id", userID, "issue_id", draft.IssueID, "hours", draft.Hours)

	editPrompt(ctx, b, log, draft,
		h.deps.Config.Messages.EntrySaved+"\n"+draftSummary(draft, time.Now()), nil)
	h.deps.Drafts.Clear(userID)
}

// answerCallback acknowledges a callback query so the client stops showing
// the progress spinner.
func answerCallback(ctx context.Context, b *bot.Bot, log *slog.Logger, callbackID string) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID})
	if err != nil {
		log.DebugContext(ctx, "Failed to answer callback query", "error", err)
	}
}

// editPrompt rewrites the dialogue's prompt message in place. A nil keyboard
// clears any previous one.
func editPrompt(ctx context.Context, b *bot.Bot, log *slog.Logger, draft conversation.Draft, text string, kb *models.InlineKeyboardMarkup) {
	if draft.PromptMessageID == 0 {
		return
	}

	params := &bot.EditMessageTextParams{
		ChatID:    draft.ChatID,
		MessageID: draft.PromptMessageID,
		Text:      text,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}

	if _, err := b.EditMessageText(ctx, params); err != nil && !errors.Is(err, bot.ErrorBadRequest) {
		log.WarnContext(ctx, "Failed to edit prompt message",
			"error", err, "chat_id", draft.ChatID, "message_id", draft.PromptMessageID)
	}
}
