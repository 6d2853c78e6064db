package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"

	"github.com/set-night/imagebroker/internal/config"
)

// TelegramLogger posts operator notifications to a log chat.
type TelegramLogger struct {
	bot    *bot.Bot
	chatID int64
}

func NewTelegramLogger(b *bot.Bot, chatID int64) *TelegramLogger {
	return &TelegramLogger{bot: b, chatID: chatID}
}

func (l *TelegramLogger) Enabled() bool {
	return l != nil && l.bot != nil && l.chatID != 0
}

func (l *TelegramLogger) Log(message string) {
	if !l.Enabled() {
		return
	}

	message = Truncate(message, config.MaxTelegramMessageLen)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: l.chatID,
		Text:   message,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "error", err)
	}
}

// LogError implements service.ErrorReporter.
func (l *TelegramLogger) LogError(err error, context string) {
	l.Log(FormatErrorLog(err, context, time.Now()))
}

func FormatErrorLog(err error, context string, at time.Time) string {
	return fmt.Sprintf("Error\n\nOperation: %s\nError: %s\nTime: %s",
		context, err.Error(), at.Format("2006-01-02 15:04:05"))
}
