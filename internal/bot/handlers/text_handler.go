package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tracktime/internal/conversation"
)

// NewTextHandler returns the default handler for plain text messages. Free
// text is meaningful in exactly two states: it is the API key during
// registration and the comment during a time-entry dialogue. Anything else
// gets a re-prompt for the input the current state is waiting on.
func NewTextHandler(deps HandlerDeps) bot.HandlerFunc {
	return textHandler{deps}.Handle
}

type textHandler struct {
	deps HandlerDeps
}

func (h textHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "text")

	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}
	if strings.HasPrefix(update.Message.Text, "/") {
		// Unknown command; the registered command handlers never reach here.
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	draft, ok := h.deps.Drafts.Peek(userID)
	if !ok {
		log.DebugContext(ctx, "Text message outside any dialogue, ignoring", "user_id", userID)
		return
	}

	switch draft.State {
	case conversation.StateAuthKey:
		h.handleAuthKey(ctx, b, log, userID, chatID, update.Message.Text)
	case conversation.StateComments:
		h.handleComments(ctx, b, log, userID, update.Message.Text)
	case conversation.StateSpentOn:
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.AskSpentOn)
	case conversation.StateIssue:
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.AskIssue)
	case conversation.StateHours:
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.AskHours)
	}
}

// handleAuthKey validates the submitted key against Redmine and persists it
// on success. Nothing is stored when Redmine rejects the key.
func (h textHandler) handleAuthKey(ctx context.Context, b *bot.Bot, log *slog.Logger, userID, chatID int64, text string) {
	authkey := strings.TrimSpace(text)
	h.deps.Drafts.Clear(userID)

	if !h.deps.Redmine.Authenticate(ctx, authkey) {
		log.InfoContext(ctx, "Redmine rejected submitted auth key", "user_id", userID)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.InvalidAuthKey)
		return
	}

	if err := h.deps.Store.SaveAuthKey(ctx, userID, authkey); err != nil {
		log.ErrorContext(ctx, "Failed to save auth key", "user_id", userID, "error", err)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	// Warm the mirror with today's entries now that we can talk to Redmine.
	today := time.Now().Format(conversation.DateLayout)
	h.deps.Engine.Enqueue(ctx, userID, today)

	log.InfoContext(ctx, "Auth key saved", "user_id", userID)
	sendText(ctx, b, log, chatID, h.deps.Config.Messages.AuthKeySaved)
	sendText(ctx, b, log, chatID, h.deps.Config.Messages.Welcome)
}

// handleComments records the comment, replaces the picker message with the
// hour pad, and moves the dialogue to hour accumulation.
func (h textHandler) handleComments(ctx context.Context, b *bot.Bot, log *slog.Logger, userID int64, text string) {
	if err := h.deps.Drafts.Update(userID, func(d *conversation.Draft) error {
		return d.SetComments(text)
	}); err != nil {
		log.WarnContext(ctx, "Failed to record comment", "user_id", userID, "error", err)
		return
	}

	draft, ok := h.deps.Drafts.Peek(userID)
	if !ok {
		return
	}

	if draft.PromptMessageID != 0 {
		_, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    draft.ChatID,
			MessageID: draft.PromptMessageID,
		})
		if err != nil {
			log.WarnContext(ctx, "Failed to delete prompt message",
				"error", err, "chat_id", draft.ChatID, "message_id", draft.PromptMessageID)
		}
	}

	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      draft.ChatID,
		Text:        draftSummary(draft, time.Now()) + h.deps.Config.Messages.AskHours,
		ReplyMarkup: hoursKeyboard(false),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send hours keyboard", "error", err, "chat_id", draft.ChatID)
		return
	}

	if err := h.deps.Drafts.Update(userID, func(d *conversation.Draft) error {
		d.PromptMessageID = msg.ID
		return nil
	}); err != nil {
		log.WarnContext(ctx, "Draft vanished while sending hours keyboard", "user_id", userID, "error", err)
	}
}
