package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func toolName(req mcp.Request) string {
	if call, ok := req.(*mcp.CallToolRequest); ok && call.Params != nil {
		return call.Params.Name
	}
	return ""
}

// MCPRecover turns a panic during request handling into a failed call.
// Tool calls get an error result so the client sees a normal failure.
func MCPRecover() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (res mcp.Result, err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic recovered in MCP handler",
						"method", method,
						"tool", toolName(req),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					if _, ok := req.(*mcp.CallToolRequest); ok {
						res = &mcp.CallToolResult{
							Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: internal error: %v", r)}},
							IsError: true,
						}
						err = nil
						return
					}
					res = nil
					err = fmt.Errorf("internal error: %v", r)
				}
			}()
			return next(ctx, method, req)
		}
	}
}

// MCPLogging logs request processing time.
func MCPLogging() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			res, err := next(ctx, method, req)

			attrs := []any{
				"method", method,
				"duration", time.Since(start),
			}
			if name := toolName(req); name != "" {
				attrs = append(attrs, "tool", name)
			}
			if call, ok := res.(*mcp.CallToolResult); ok && call != nil && call.IsError {
				attrs = append(attrs, "tool_error", true)
			}
			if err != nil {
				slog.Warn("request failed", append(attrs, "error", err)...)
				return res, err
			}
			slog.Debug("request processed", attrs...)
			return res, nil
		}
	}
}
