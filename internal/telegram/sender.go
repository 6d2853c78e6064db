package telegram

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/imagebroker/internal/config"
)

// SendLongMessage sends plain text, splitting it into parts if needed.
func SendLongMessage(ctx context.Context, b *bot.Bot, chatID int64, text string, replyToID *int) error {
	for _, part := range SplitMessage(text, config.MaxTelegramMessageLen) {
		params := &bot.SendMessageParams{
			ChatID: chatID,
			Text:   part,
		}
		if replyToID != nil {
			params.ReplyParameters = &models.ReplyParameters{
				MessageID: *replyToID,
			}
			replyToID = nil // only reply to first part
		}

		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// SendImage uploads image bytes as a photo. Captions over the Telegram limit
// are sent as a follow-up message instead.
func SendImage(ctx context.Context, b *bot.Bot, chatID int64, path string, data []byte, caption string) error {
	photoCaption := caption
	if len([]rune(caption)) > config.MaxTelegramCaptionLen {
		photoCaption = Truncate(caption, config.MaxTelegramCaptionLen)
	}

	_, err := b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: filepath.Base(path), Data: bytes.NewReader(data)},
		Caption: photoCaption,
	})
	if err != nil {
		return fmt.Errorf("send photo: %w", err)
	}

	if photoCaption != caption {
		return SendLongMessage(ctx, b, chatID, caption, nil)
	}
	return nil
}

// StartAction sends a chat action every 4 seconds until the returned cancel function is called.
func StartAction(ctx context.Context, b *bot.Bot, chatID int64, action models.ChatAction) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		// Send immediately
		b.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: action,
		})
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.SendChatAction(ctx, &bot.SendChatActionParams{
					ChatID: chatID,
					Action: action,
				})
			}
		}
	}()
	return cancel
}
