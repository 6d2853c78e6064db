package middleware

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type ctxKey string

const SessionKeyCtx ctxKey = "session"

// SessionKey extracts the broker session key from context.
func SessionKey(ctx context.Context) string {
	key, _ := ctx.Value(SessionKeyCtx).(string)
	return key
}

// ChatSessionKey maps a Telegram chat to its broker session.
func ChatSessionKey(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// ChatGuard drops updates from chats that are not allowed and stores the
// chat's session key in context for the rest.
func ChatGuard(allowed func(chatID int64) bool) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			chatID, ok := UpdateChatID(update)
			if !ok {
				return
			}
			if !allowed(chatID) {
				slog.Warn("update from chat not in allow-list", "chat_id", chatID)
				return
			}

			ctx = context.WithValue(ctx, SessionKeyCtx, ChatSessionKey(chatID))
			next(ctx, b, update)
		}
	}
}

// UpdateChatID returns the chat an update belongs to.
func UpdateChatID(update *models.Update) (int64, bool) {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		return update.CallbackQuery.Message.Message.Chat.ID, true
	}
	return 0, false
}
