package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCancelHandler returns a handler for the /cancel command. Cancelling
// deletes the in-flight prompt message and discards the draft; nothing has
// been committed at any point before Done, so there is nothing to undo.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return cancelHandler{deps}.Handle
}

type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "cancel")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Cancel handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /cancel command", "chat_id", chatID, "user_id", userID)

	draft, ok := h.deps.Drafts.Peek(userID)
	if !ok {
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.Welcome)
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

	h.deps.Drafts.Clear(userID)
	sendText(ctx, b, log, chatID, h.deps.Config.Messages.Cancelled)
}
