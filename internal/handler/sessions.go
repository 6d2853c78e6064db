package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/imagebroker/internal/tools"
)

func (h *Handler) handleHistory(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	key := sessionKey(ctx, chatID)

	records, err := h.broker.History(ctx, key)
	if err != nil {
		h.reply(ctx, b, chatID, tools.FormatError(err))
		return
	}
	h.reply(ctx, b, chatID, tools.FormatHistory(key, records))
}

func (h *Handler) handleClear(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	key := sessionKey(ctx, chatID)

	h.broker.ClearSession(key)
	h.reply(ctx, b, chatID, tools.FormatCleared(key))
}
