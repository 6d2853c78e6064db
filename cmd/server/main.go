package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/imagebroker/internal/config"
	"github.com/set-night/imagebroker/internal/handler"
	"github.com/set-night/imagebroker/internal/middleware"
	"github.com/set-night/imagebroker/internal/service"
	"github.com/set-night/imagebroker/internal/telegram"
	"github.com/set-night/imagebroker/internal/tools"
)

func main() {
	// Stdout carries the MCP protocol in stdio mode, so logs go to stderr
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	registry := service.NewRegistry(service.WithTranscriptLimit(cfg.TranscriptLimit))
	resolver := service.NewResolver(cfg.OutputDir)
	output := service.NewOutputWriter(cfg.OutputDir)
	gemini := service.NewGeminiService(cfg)

	// Handler pointer for use in default handler closure
	var h *handler.Handler

	var b *bot.Bot
	if cfg.TelegramEnabled() {
		b, err = bot.New(cfg.TelegramToken,
			bot.WithMiddlewares(
				middleware.Recover(),
				middleware.Logging(),
				middleware.ChatGuard(cfg.IsChatAllowed),
				middleware.RateLimit(middleware.NewLimiter(config.RateLimitPerMinute)),
			),
			bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
				if h == nil {
					return
				}
				h.HandleDefault(ctx, b, update)
			}),
		)
		if err != nil {
			slog.Error("failed to create bot", "error", err)
			os.Exit(1)
		}
	}

	broker := service.NewBroker(service.BrokerDeps{
		Registry: registry,
		Resolver: resolver,
		Backend:  gemini,
		Output:   output,
		Reporter: telegram.NewTelegramLogger(b, cfg.TelegramLogChatID),
	})

	if b != nil {
		h = handler.New(handler.Deps{
			Bot:    b,
			Broker: broker,
			Output: output,
		})
		h.Register()

		me, err := b.GetMe(ctx)
		if err != nil {
			slog.Error("failed to get bot info", "error", err)
			os.Exit(1)
		}
		slog.Info("starting bot", "username", me.Username, "id", me.ID)
		go b.Start(ctx)
	}

	slog.Info("image broker ready",
		"output_dir", cfg.OutputDir,
		"image_model", cfg.ImageModel,
		"chat_model", cfg.ChatModel,
		"telegram", b != nil,
	)

	if err := tools.Serve(ctx, tools.New(broker), cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown
	slog.Info("server stopped gracefully")
}
