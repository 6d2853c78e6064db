package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	GeminiAPIKey  string `env:"GEMINI_API_KEY,required,notEmpty"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	ImageModel    string `env:"GEMINI_IMAGE_MODEL" envDefault:"gemini-2.5-flash-image"`
	ChatModel     string `env:"GEMINI_CHAT_MODEL" envDefault:"gemini-2.5-flash"`

	// Artifacts
	OutputDir string `env:"OUTPUT_DIR"`

	// Sessions
	TranscriptLimit int `env:"TRANSCRIPT_LIMIT" envDefault:"0"`

	// Server
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	Transport string `env:"MCP_TRANSPORT" envDefault:"stdio"`
	HTTPAddr  string `env:"MCP_HTTP_ADDR" envDefault:"127.0.0.1:8765"`

	// Telegram front end, disabled when the token is empty
	TelegramToken        string  `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAllowedChats []int64 `env:"TELEGRAM_ALLOWED_CHAT_IDS" envSeparator:","`
	TelegramLogChatID    int64   `env:"TELEGRAM_LOG_CHAT_ID"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		return fmt.Errorf("parse config: unsupported MCP_TRANSPORT %q", c.Transport)
	}
	if c.TranscriptLimit < 0 {
		return fmt.Errorf("parse config: TRANSCRIPT_LIMIT must not be negative")
	}
	if c.OutputDir == "" {
		dir, err := DefaultOutputDir()
		if err != nil {
			return err
		}
		c.OutputDir = dir
	}
	c.OutputDir = expandHome(c.OutputDir)
	return nil
}

// DefaultOutputDir returns the artifact directory under the user's documents folder.
func DefaultOutputDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, "Documents", DefaultOutputFolder), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

func (c *Config) IsChatAllowed(chatID int64) bool {
	if len(c.TelegramAllowedChats) == 0 {
		return true
	}
	for _, id := range c.TelegramAllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
