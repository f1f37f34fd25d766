package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tracktime/internal/conversation"
)

// NewStartHandler returns a handler for the /start command, which begins the
// registration dialogue: the user row is created if needed and the next text
// message is treated as the Redmine API key.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID, "user_id", userID)

	if _, err := h.deps.Store.FindOrCreateUser(ctx, userID); err != nil {
		log.ErrorContext(ctx, "Failed to find or create user", "user_id", userID, "error", err)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	h.deps.Drafts.Begin(userID, chatID, conversation.StateAuthKey)
	sendText(ctx, b, log, chatID, h.deps.Config.Messages.AskAuthKey)
}

// sendText sends a plain message and logs delivery failures.
func sendText(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}
