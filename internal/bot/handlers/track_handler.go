package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tracktime/internal/conversation"
)

// NewTrackHandler returns a handler for the /track command, which begins the
// time-entry dialogue with the date picker.
func NewTrackHandler(deps HandlerDeps) bot.HandlerFunc {
	return trackHandler{deps}.Handle
}

type trackHandler struct {
	deps HandlerDeps
}

func (h trackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "track")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Track handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /track command", "chat_id", chatID, "user_id", userID)

	user, err := h.deps.Store.GetUser(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load user", "user_id", userID, "error", err)
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.GeneralError)
		return
	}
	if user == nil || user.Authkey == "" {
		sendText(ctx, b, log, chatID, h.deps.Config.Messages.NotRegistered)
		return
	}

	// Pull in today's remote activity so the upcoming issue suggestions
	// reflect entries made directly in Redmine.
	today := time.Now().Format(conversation.DateLayout)
	h.deps.Engine.Enqueue(ctx, userID, today)

	h.deps.Drafts.Begin(userID, chatID, conversation.StateSpentOn)
	sendText(ctx, b, log, chatID, h.deps.Config.Messages.TrackIntro)

	draft, _ := h.deps.Drafts.Peek(userID)
	text := draftSummary(draft, time.Now()) + h.deps.Config.Messages.AskSpentOn
	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: datePickerKeyboard(time.Now()),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send date picker", "error", err, "chat_id", chatID)
		h.deps.Drafts.Clear(userID)
		return
	}

	if err := h.deps.Drafts.Update(userID, func(d *conversation.Draft) error {
		d.PromptMessageID = msg.ID
		return nil
	}); err != nil {
		log.WarnContext(ctx, "Draft vanished while starting dialogue", "user_id", userID, "error", err)
	}
}
