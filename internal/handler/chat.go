package handler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/imagebroker/internal/service"
	tg "github.com/set-night/imagebroker/internal/telegram"
	"github.com/set-night/imagebroker/internal/tools"
)

func (h *Handler) handleChat(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	h.chat(ctx, b, msg.Chat.ID, msg.Text, nil)
}

func (h *Handler) chat(ctx context.Context, b *bot.Bot, chatID int64, text string, images []string) {
	stop := tg.StartAction(ctx, b, chatID, models.ChatActionTyping)
	res, err := h.broker.Chat(ctx, service.ChatRequest{
		SessionID: sessionKey(ctx, chatID),
		Message:   text,
		Images:    images,
	})
	stop()

	if err != nil {
		h.reply(ctx, b, chatID, tools.FormatError(err))
		return
	}
	h.reply(ctx, b, chatID, tools.FormatChat(res))
}

// handleUpload stores a received image in the output directory. A caption
// is handled as a chat message about the image, or as an edit of it when it
// starts with /edit.
func (h *Handler) handleUpload(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	chatID := msg.Chat.ID

	fileID := ""
	mimeType := "image/jpeg"
	if n := len(msg.Photo); n > 0 {
		fileID = msg.Photo[n-1].FileID
	} else {
		fileID = msg.Document.FileID
		mimeType = msg.Document.MimeType
	}

	data, _, err := tg.DownloadFile(ctx, b, fileID)
	if err != nil {
		slog.Error("download upload failed", "error", err, "chat_id", chatID)
		h.reply(ctx, b, chatID, "Error: could not download the image.")
		return
	}

	path, err := h.output.SaveUpload(data, service.DetectMimeType(data, "."+strings.TrimPrefix(mimeType, "image/")))
	if err != nil {
		slog.Error("save upload failed", "error", err, "chat_id", chatID)
		h.reply(ctx, b, chatID, tools.FormatError(err))
		return
	}
	slog.Info("upload stored", "chat_id", chatID, "path", path)

	caption := strings.TrimSpace(msg.Caption)
	switch {
	case caption == "":
		h.reply(ctx, b, chatID, fmt.Sprintf("Image saved as %s. Reference it by that name in /generate or /edit.", filepath.Base(path)))
	case strings.HasPrefix(caption, "/edit"):
		_, rest := splitCommand(caption)
		args := parseImageArgs(rest)
		if args.Rest == "" {
			h.reply(ctx, b, chatID, "Error: invalid argument: add an instruction after /edit")
			return
		}
		h.edit(ctx, b, chatID, args, path, args.Rest)
	default:
		h.chat(ctx, b, chatID, caption, []string{path})
	}
}

func slogSendError(chatID int64, err error) {
	slog.Error("send telegram message failed", "error", err, "chat_id", chatID)
}
