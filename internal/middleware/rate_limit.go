package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Limiter counts events per chat in fixed one-minute windows.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets map[int64]*bucket
}

type bucket struct {
	start time.Time
	count int
}

func NewLimiter(limit int) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  time.Minute,
		now:     time.Now,
		buckets: make(map[int64]*bucket),
	}
}

// Allow records one event for chatID and reports whether it is within the
// limit for the current window.
func (l *Limiter) Allow(chatID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bk, ok := l.buckets[chatID]
	if !ok || now.Sub(bk.start) >= l.window {
		bk = &bucket{start: now}
		l.buckets[chatID] = bk
	}
	bk.count++
	return bk.count <= l.limit
}

// RateLimit returns middleware that enforces per-minute rate limits.
func RateLimit(limiter *Limiter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			// Only rate limit messages
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			if !limiter.Allow(chatID) {
				slog.Debug("rate limited", "chat_id", chatID, "limit", limiter.limit)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chatID,
					Text:   "Too many requests. Please wait a minute.",
				})
				return
			}

			next(ctx, b, update)
		}
	}
}
