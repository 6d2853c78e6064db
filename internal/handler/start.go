package handler

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/imagebroker/internal/domain"
)

const helpText = `Image generation and editing.

Commands:
/ratio [ratio] - show or set the default aspect ratio
/generate [--history] [--search] [ratio] <prompt> - generate an image
/edit [--search] [ratio] <image> <instruction> - edit an image
/history - list images in this chat's session
/clear - reset the session

Images are referenced by file name, "last" or "history:N".
Send a photo to store it; add a caption to chat about it, or start the caption with /edit to edit it.
Any other text is sent to the chat model with the conversation so far.

Supported ratios: %s`

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.reply(ctx, b, update.Message.Chat.ID, fmt.Sprintf(helpText, domain.RatioList()))
}
