package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/set-night/imagebroker/internal/config"
	"github.com/set-night/imagebroker/internal/domain"
	"github.com/set-night/imagebroker/internal/middleware"
	"github.com/set-night/imagebroker/internal/service"
)

const (
	ToolSetAspectRatio = "set_aspect_ratio"
	ToolChat           = "chat"
	ToolGenerateImage  = "generate_image"
	ToolEditImage      = "edit_image"
	ToolImageHistory   = "get_image_history"
	ToolClearSession   = "clear_session"
)

// New builds the MCP server exposing the broker operations as tools.
func New(broker *service.Broker) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    config.ServerName,
		Version: config.ServerVersion,
	}, nil)

	s.AddReceivingMiddleware(middleware.MCPRecover(), middleware.MCPLogging())

	h := &handlers{broker: broker}

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolSetAspectRatio,
		Description: "Set the default aspect ratio for a session. Required before generate_image or edit_image unless aspect_ratio is passed per call. Supported: " + domain.RatioList(),
	}, h.setAspectRatio)

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolChat,
		Description: "Multi-turn conversation with optional images. The session transcript is replayed on every call.",
	}, h.chat)

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolGenerateImage,
		Description: "Generate a new image from a prompt and save it as PNG. Reference images accept file paths, \"last\" or \"history:N\".",
	}, h.generateImage)

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolEditImage,
		Description: "Edit an existing image (file path, \"last\" or \"history:N\") following an instruction and save the result as PNG.",
	}, h.editImage)

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolImageHistory,
		Description: "List the images generated or edited in a session, oldest first, with their history:N references.",
	}, h.imageHistory)

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolClearSession,
		Description: "Reset a session: transcript, image history and default aspect ratio.",
	}, h.clearSession)

	return s
}
