// Package handlers contains the Telegram command, callback, and text handlers
// that drive the registration and time-entry dialogues.
package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// Callback data prefixes used by the inline keyboards.
const (
	CallbackSpentOn = "spent_on:"
	CallbackIssue   = "issue:"
	CallbackHours   = "hours:"

	// Suffixes of CallbackHours for the two non-numeric hour buttons.
	hoursReset = "reset"
	hoursDone  = "done"
)

// RegisteredHandler represents a handler with its registration parameters.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	MatchType   tgbot.MatchType
}

// RegisterAllHandlers initializes and returns a map of all bot handlers:
// the four commands plus one callback handler per keyboard prefix.
func RegisterAllHandlers(deps HandlerDeps) map[string]RegisteredHandler {
	registered := make(map[string]RegisteredHandler)

	registered["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	registered["/track"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "track",
		Handler:     NewTrackHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	registered["/cancel"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "cancel",
		Handler:     NewCancelHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	registered["/help"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	registered["callback:spent_on"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     CallbackSpentOn,
		Handler:     NewSpentOnCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}
	registered["callback:issue"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     CallbackIssue,
		Handler:     NewIssueCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}
	registered["callback:hours"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     CallbackHours,
		Handler:     NewHoursCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}

	return registered
}
