package tools

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/set-night/imagebroker/internal/service"
)

type SetAspectRatioInput struct {
	AspectRatio string `json:"aspect_ratio" jsonschema:"aspect ratio such as 1:1, 16:9 or 9:16"`
	SessionID   string `json:"session_id,omitempty" jsonschema:"session identifier, defaults to \"default\""`
}

type ChatInput struct {
	Message           string   `json:"message" jsonschema:"the message to send"`
	Images            []string `json:"images,omitempty" jsonschema:"up to 10 images: file paths, \"last\" or \"history:N\""`
	SessionID         string   `json:"session_id,omitempty" jsonschema:"session identifier, defaults to \"default\""`
	SystemInstruction string   `json:"system_instruction,omitempty" jsonschema:"optional system instruction for this call"`
}

type GenerateImageInput struct {
	Prompt          string   `json:"prompt" jsonschema:"description of the image to generate"`
	AspectRatio     string   `json:"aspect_ratio,omitempty" jsonschema:"overrides the session default aspect ratio"`
	OutputPath      string   `json:"output_path,omitempty" jsonschema:"where to save the PNG, defaults to the output directory"`
	SessionID       string   `json:"session_id,omitempty" jsonschema:"session identifier, defaults to \"default\""`
	UseImageHistory bool     `json:"use_image_history,omitempty" jsonschema:"include up to 3 recent session images for visual consistency"`
	ReferenceImages []string `json:"reference_images,omitempty" jsonschema:"up to 10 reference images: file paths, \"last\" or \"history:N\""`
	UseSearch       bool     `json:"use_search,omitempty" jsonschema:"ground the generation with web search"`
}

type EditImageInput struct {
	ImagePath       string   `json:"image_path" jsonschema:"image to edit: file path, \"last\" or \"history:N\""`
	Instruction     string   `json:"instruction" jsonschema:"what to change"`
	AspectRatio     string   `json:"aspect_ratio,omitempty" jsonschema:"overrides the session default aspect ratio"`
	OutputPath      string   `json:"output_path,omitempty" jsonschema:"where to save the PNG, defaults to the output directory"`
	SessionID       string   `json:"session_id,omitempty" jsonschema:"session identifier, defaults to \"default\""`
	ReferenceImages []string `json:"reference_images,omitempty" jsonschema:"up to 10 additional reference images"`
	UseSearch       bool     `json:"use_search,omitempty" jsonschema:"ground the edit with web search"`
}

type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier, empty selects \"default\""`
}

type handlers struct {
	broker *service.Broker
}

func (h *handlers) setAspectRatio(ctx context.Context, _ *mcp.CallToolRequest, in SetAspectRatioInput) (*mcp.CallToolResult, any, error) {
	ratio, err := h.broker.ConfigureRatio(ctx, in.SessionID, in.AspectRatio)
	if err != nil {
		return failure(ToolSetAspectRatio, err), nil, nil
	}
	return success(FormatRatio(in.SessionID, ratio)), nil, nil
}

func (h *handlers) chat(ctx context.Context, _ *mcp.CallToolRequest, in ChatInput) (*mcp.CallToolResult, any, error) {
	res, err := h.broker.Chat(ctx, service.ChatRequest{
		SessionID:         in.SessionID,
		Message:           in.Message,
		Images:            in.Images,
		SystemInstruction: in.SystemInstruction,
	})
	if err != nil {
		return failure(ToolChat, err), nil, nil
	}
	return success(FormatChat(res)), nil, nil
}

func (h *handlers) generateImage(ctx context.Context, _ *mcp.CallToolRequest, in GenerateImageInput) (*mcp.CallToolResult, any, error) {
	res, err := h.broker.Generate(ctx, service.GenerateRequest{
		SessionID:  in.SessionID,
		Prompt:     in.Prompt,
		Ratio:      in.AspectRatio,
		OutputPath: in.OutputPath,
		UseHistory: in.UseImageHistory,
		UseSearch:  in.UseSearch,
		References: in.ReferenceImages,
	})
	if err != nil {
		return failure(ToolGenerateImage, err), nil, nil
	}
	return success(FormatImage(res)), nil, nil
}

func (h *handlers) editImage(ctx context.Context, _ *mcp.CallToolRequest, in EditImageInput) (*mcp.CallToolResult, any, error) {
	res, err := h.broker.Edit(ctx, service.EditRequest{
		SessionID:   in.SessionID,
		Subject:     in.ImagePath,
		Instruction: in.Instruction,
		Ratio:       in.AspectRatio,
		OutputPath:  in.OutputPath,
		UseSearch:   in.UseSearch,
		References:  in.ReferenceImages,
	})
	if err != nil {
		return failure(ToolEditImage, err), nil, nil
	}
	return success(FormatImage(res)), nil, nil
}

func (h *handlers) imageHistory(ctx context.Context, _ *mcp.CallToolRequest, in SessionInput) (*mcp.CallToolResult, any, error) {
	records, err := h.broker.History(ctx, in.SessionID)
	if err != nil {
		return failure(ToolImageHistory, err), nil, nil
	}
	return success(FormatHistory(in.SessionID, records)), nil, nil
}

func (h *handlers) clearSession(_ context.Context, _ *mcp.CallToolRequest, in SessionInput) (*mcp.CallToolResult, any, error) {
	h.broker.ClearSession(in.SessionID)
	return success(FormatCleared(in.SessionID)), nil, nil
}

func success(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func failure(tool string, err error) *mcp.CallToolResult {
	slog.Warn("tool call failed", "tool", tool, "error", err)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatError(err)}},
		IsError: true,
	}
}
