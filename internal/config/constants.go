package config

import "time"

const (
	// Session defaults
	DefaultSessionKey = "default"

	// Media history capacity per session, oldest evicted first
	MaxHistory = 10

	// Images accepted per call (chat images, reference images)
	MaxImages = 10

	// History records included in consistency mode
	HistoryConsistencyCount = 3

	// Backend request timeout
	RequestTimeout = 180 * time.Second

	// Largest single SSE event accepted from the backend
	MaxStreamEventSize = 64 << 20

	// Artifact folder under ~/Documents
	DefaultOutputFolder = "gemini-images"

	// MCP transports
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	// Server identity
	ServerName    = "imagebroker"
	ServerVersion = "0.3.0"

	// Telegram limits
	MaxTelegramMessageLen = 4096
	MaxTelegramCaptionLen = 1024

	// Telegram rate limit (per chat, per minute)
	RateLimitPerMinute = 6
)
