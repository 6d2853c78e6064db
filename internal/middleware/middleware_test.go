package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Window(t *testing.T) {
	l := NewLimiter(2)
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
	assert.True(t, l.Allow(2), "chats are counted separately")

	now = now.Add(59 * time.Second)
	assert.False(t, l.Allow(1))

	now = now.Add(time.Second)
	assert.True(t, l.Allow(1))
}

func TestChatSessionKey(t *testing.T) {
	assert.Equal(t, "tg:42", ChatSessionKey(42))
	assert.Equal(t, "tg:-100123", ChatSessionKey(-100123))
}

func TestChatGuard(t *testing.T) {
	var got []string
	next := func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
		got = append(got, SessionKey(ctx))
	}
	h := ChatGuard(func(id int64) bool { return id == 7 })(next)

	h(context.Background(), nil, &models.Update{Message: &models.Message{Chat: models.Chat{ID: 7}}})
	h(context.Background(), nil, &models.Update{Message: &models.Message{Chat: models.Chat{ID: 8}}})
	h(context.Background(), nil, &models.Update{})

	assert.Equal(t, []string{"tg:7"}, got)
}

func TestBotRecover(t *testing.T) {
	h := Recover()(func(context.Context, *bot.Bot, *models.Update) {
		panic("boom")
	})
	assert.NotPanics(t, func() {
		h(context.Background(), nil, &models.Update{})
	})
}

func TestMCPRecover_ToolCall(t *testing.T) {
	h := MCPRecover()(func(context.Context, string, mcp.Request) (mcp.Result, error) {
		panic("boom")
	})

	res, err := h(context.Background(), "tools/call", &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: "generate_image"}})
	require.NoError(t, err)
	call, ok := res.(*mcp.CallToolResult)
	require.True(t, ok)
	assert.True(t, call.IsError)
	assert.Contains(t, call.Content[0].(*mcp.TextContent).Text, "boom")
}

func TestMCPRecover_OtherMethod(t *testing.T) {
	h := MCPRecover()(func(context.Context, string, mcp.Request) (mcp.Result, error) {
		panic("boom")
	})

	res, err := h(context.Background(), "tools/list", &mcp.ListToolsRequest{})
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "boom")
}

func TestMCPLogging_PassesThrough(t *testing.T) {
	want := &mcp.CallToolResult{IsError: true}
	h := MCPLogging()(func(context.Context, string, mcp.Request) (mcp.Result, error) {
		return want, nil
	})

	res, err := h(context.Background(), "tools/call", &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: "chat"}})
	require.NoError(t, err)
	assert.Same(t, want, res)
}

func TestChatGuard_CallbackQuery(t *testing.T) {
	var got string
	h := ChatGuard(func(int64) bool { return true })(func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
		got = SessionKey(ctx)
	})

	h(context.Background(), nil, &models.Update{CallbackQuery: &models.CallbackQuery{
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{Chat: models.Chat{ID: 9}}},
	}})
	assert.Equal(t, "tg:9", got)
}
