package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/imagebroker/internal/domain"
	tg "github.com/set-night/imagebroker/internal/telegram"
	"github.com/set-night/imagebroker/internal/tools"
)

// Register registers all command and callback handlers on the bot instance.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/ratio", bot.MatchTypePrefix, h.handleRatio)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/generate", bot.MatchTypePrefix, h.handleGenerate)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/edit", bot.MatchTypePrefix, h.handleEdit)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypePrefix, h.handleHistory)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/clear", bot.MatchTypePrefix, h.handleClear)

	// Ratio keyboard
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, tg.RatioCallbackPrefix, bot.MatchTypePrefix, h.handleRatioCallback)
}

// HandleDefault receives every update no registered handler matched: plain
// text goes to chat, photos are stored for later reference and anything that
// looks like a command is rejected.
func (h *Handler) HandleDefault(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		if update.CallbackQuery != nil {
			b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
				CallbackQueryID: update.CallbackQuery.ID,
			})
		}
		return
	}

	switch {
	case len(msg.Photo) > 0 || isImageDocument(msg.Document):
		h.handleUpload(ctx, b, update)
	case strings.HasPrefix(msg.Text, "/"):
		cmd, _ := splitCommand(msg.Text)
		err := fmt.Errorf("%w: %s (see /help)", domain.ErrUnknownOperation, cmd)
		h.reply(ctx, b, msg.Chat.ID, tools.FormatError(err))
	case strings.TrimSpace(msg.Text) != "":
		h.handleChat(ctx, b, update)
	}
}

func (h *Handler) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if err := tg.SendLongMessage(ctx, b, chatID, text, nil); err != nil {
		slogSendError(chatID, err)
	}
}
