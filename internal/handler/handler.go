package handler

import (
	"context"

	"github.com/go-telegram/bot"

	"github.com/set-night/imagebroker/internal/middleware"
	"github.com/set-night/imagebroker/internal/service"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot    *bot.Bot
	broker *service.Broker
	output *service.OutputWriter
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot    *bot.Bot
	Broker *service.Broker
	Output *service.OutputWriter
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:    deps.Bot,
		broker: deps.Broker,
		output: deps.Output,
	}
}

// sessionKey returns the broker session for the chat handling this update.
func sessionKey(ctx context.Context, chatID int64) string {
	if key := middleware.SessionKey(ctx); key != "" {
		return key
	}
	return middleware.ChatSessionKey(chatID)
}
