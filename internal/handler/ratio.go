package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/imagebroker/internal/service"
	tg "github.com/set-night/imagebroker/internal/telegram"
	"github.com/set-night/imagebroker/internal/tools"
)

const ratioButtonsPerRow = 5

func (h *Handler) handleRatio(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	key := sessionKey(ctx, chatID)

	_, arg := splitCommand(update.Message.Text)
	if arg != "" {
		ratio, err := h.broker.ConfigureRatio(ctx, key, arg)
		if err != nil {
			h.reply(ctx, b, chatID, tools.FormatError(err))
			return
		}
		h.reply(ctx, b, chatID, tools.FormatRatio(key, ratio))
		return
	}

	current, err := h.broker.DefaultRatio(ctx, key)
	if err != nil {
		h.reply(ctx, b, chatID, tools.FormatError(err))
		return
	}
	text := "No aspect ratio set. Choose one:"
	if current != nil {
		text = fmt.Sprintf("Current aspect ratio: %s. Choose another:", *current)
	}
	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: tg.RatioKeyboard(current, ratioButtonsPerRow),
	})
	if err != nil {
		slogSendError(chatID, err)
	}
}

func (h *Handler) handleRatioCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return
	}
	msg := cq.Message.Message
	key := sessionKey(ctx, msg.Chat.ID)

	value, _ := tg.ParseRatioCallback(cq.Data)
	ratio, err := h.broker.ConfigureRatio(ctx, key, value)

	answer := &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID}
	if err != nil {
		answer.Text = tools.FormatError(err)
		answer.ShowAlert = true
		b.AnswerCallbackQuery(ctx, answer)
		return
	}
	answer.Text = "Aspect ratio set to " + string(ratio)
	b.AnswerCallbackQuery(ctx, answer)

	_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        tools.FormatRatio(key, ratio),
		ReplyMarkup: tg.RatioKeyboard(&ratio, ratioButtonsPerRow),
	})
	if err != nil {
		slog.Debug("edit ratio message failed", "error", err, "session", service.NormalizeKey(key))
	}
}
