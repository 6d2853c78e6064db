package handler

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/imagebroker/internal/domain"
	"github.com/set-night/imagebroker/internal/service"
	tg "github.com/set-night/imagebroker/internal/telegram"
	"github.com/set-night/imagebroker/internal/tools"
)

func (h *Handler) handleGenerate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	_, rest := splitCommand(update.Message.Text)
	args := parseImageArgs(rest)
	if args.Rest == "" {
		err := fmt.Errorf("%w: usage /generate [--history] [--search] [ratio] <prompt>", domain.ErrInvalidArgument)
		h.reply(ctx, b, chatID, tools.FormatError(err))
		return
	}

	stop := tg.StartAction(ctx, b, chatID, models.ChatActionUploadPhoto)
	res, err := h.broker.Generate(ctx, service.GenerateRequest{
		SessionID:  sessionKey(ctx, chatID),
		Prompt:     args.Rest,
		Ratio:      args.Ratio,
		UseHistory: args.UseHistory,
		UseSearch:  args.UseSearch,
	})
	stop()

	h.sendImageResult(ctx, b, chatID, res, err)
}

func (h *Handler) handleEdit(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	_, rest := splitCommand(update.Message.Text)
	args, ref, instruction, err := parseEditArgs(rest)
	if err != nil {
		h.reply(ctx, b, chatID, tools.FormatError(err))
		return
	}
	h.edit(ctx, b, chatID, args, ref, instruction)
}

func (h *Handler) edit(ctx context.Context, b *bot.Bot, chatID int64, args imageArgs, ref, instruction string) {
	stop := tg.StartAction(ctx, b, chatID, models.ChatActionUploadPhoto)
	res, err := h.broker.Edit(ctx, service.EditRequest{
		SessionID:   sessionKey(ctx, chatID),
		Subject:     ref,
		Instruction: instruction,
		Ratio:       args.Ratio,
		UseSearch:   args.UseSearch,
	})
	stop()

	h.sendImageResult(ctx, b, chatID, res, err)
}

func (h *Handler) sendImageResult(ctx context.Context, b *bot.Bot, chatID int64, res *service.ImageResult, err error) {
	if err != nil {
		h.reply(ctx, b, chatID, tools.FormatError(err))
		return
	}
	if err := tg.SendImage(ctx, b, chatID, res.Record.StoredPath, res.Record.Data, tools.FormatImage(res)); err != nil {
		slogSendError(chatID, err)
		h.reply(ctx, b, chatID, tools.FormatImage(res))
	}
}
