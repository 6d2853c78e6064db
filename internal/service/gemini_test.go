package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/imagebroker/internal/config"
	"github.com/set-night/imagebroker/internal/domain"
)

type capturedRequest struct {
	Path   string
	APIKey string
	Body   map[string]any
}

func newGeminiTestServer(t *testing.T, status int, events ...string) (*GeminiService, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path + "?" + r.URL.RawQuery
		captured.APIKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured.Body)

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, strings.Join(events, ""))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", ev)
		}
	}))
	t.Cleanup(srv.Close)

	svc := NewGeminiService(&config.Config{
		GeminiAPIKey:  "test-key",
		GeminiBaseURL: srv.URL + "/v1beta/",
		ImageModel:    "image-model",
		ChatModel:     "chat-model",
	})
	return svc, captured
}

func imageEvent(text string, data []byte) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q},{"inlineData":{"mimeType":"image/png","data":%q}}]}}]}`,
		text, base64.StdEncoding.EncodeToString(data))
}

func textEvent(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]}}]}`, text)
}

func imageRequest(ratio domain.Ratio) BackendRequest {
	return BackendRequest{
		Contents: []domain.Turn{{
			Role: domain.RoleUser,
			Parts: []domain.Part{
				domain.ImagePart(domain.ImageData{Data: []byte("ref"), MimeType: "image/jpeg"}),
				domain.TextPart("a red fox"),
			},
		}},
		Ratio:     ratio,
		WantImage: true,
	}
}

func TestGemini_ImageStream(t *testing.T) {
	svc, captured := newGeminiTestServer(t, http.StatusOK,
		textEvent("Sure, "),
		imageEvent("here it is.", []byte("png-bytes")),
		`{"candidates":[{"finishReason":"STOP","content":{"parts":[]}}]}`,
	)

	res, err := svc.Invoke(context.Background(), imageRequest(domain.Ratio16x9))
	require.NoError(t, err)

	assert.Equal(t, "Sure, here it is.", res.Text)
	require.NotNil(t, res.Image)
	assert.Equal(t, []byte("png-bytes"), res.Image.Data)
	assert.Equal(t, "image/png", res.Image.MimeType)
	assert.Equal(t, "STOP", res.FinishReason)

	assert.Equal(t, "/v1beta/models/image-model:streamGenerateContent?alt=sse", captured.Path)
	assert.Equal(t, "test-key", captured.APIKey)

	gen := captured.Body["generationConfig"].(map[string]any)
	assert.Equal(t, []any{"TEXT", "IMAGE"}, gen["responseModalities"])
	assert.Equal(t, "16:9", gen["imageConfig"].(map[string]any)["aspectRatio"])
	assert.NotContains(t, captured.Body, "tools")

	contents := captured.Body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	inline := parts[0].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "image/jpeg", inline["mimeType"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("ref")), inline["data"])
	assert.Equal(t, "a red fox", parts[1].(map[string]any)["text"])
}

func TestGemini_ChatUsesChatModelWithoutImageConfig(t *testing.T) {
	svc, captured := newGeminiTestServer(t, http.StatusOK, textEvent("Hel"), textEvent("lo"), "[DONE]")

	res, err := svc.Invoke(context.Background(), BackendRequest{
		Contents:          []domain.Turn{{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart("hi")}}},
		SystemInstruction: "be brief",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", res.Text)
	assert.Nil(t, res.Image)

	assert.Contains(t, captured.Path, "/models/chat-model:")
	assert.NotContains(t, captured.Body, "generationConfig")
	sys := captured.Body["systemInstruction"].(map[string]any)["parts"].([]any)
	assert.Equal(t, "be brief", sys[0].(map[string]any)["text"])
}

func TestGemini_SearchGrounding(t *testing.T) {
	grounded := `{"candidates":[{"content":{"parts":[{"text":"done"}]},"groundingMetadata":{` +
		`"webSearchQueries":["eiffel tower height"],` +
		`"searchEntryPoint":{"renderedContent":"<div><a class=\"chip\">eiffel tower</a></div>"},` +
		`"groundingChunks":[{"web":{"uri":"https://example.org","title":"Example"}}]}}]}`
	svc, captured := newGeminiTestServer(t, http.StatusOK, imageEvent("", []byte("img")), grounded)

	req := imageRequest(domain.Ratio1x1)
	req.UseSearch = true
	res, err := svc.Invoke(context.Background(), req)
	require.NoError(t, err)

	tools := captured.Body["tools"].([]any)
	assert.Contains(t, tools[0].(map[string]any), "googleSearch")

	require.NotNil(t, res.Grounding)
	assert.Equal(t, []string{"eiffel tower height"}, res.Grounding.Queries)
	assert.Equal(t, []GroundingSource{{Title: "Example", URI: "https://example.org"}}, res.Grounding.Sources)
	assert.Equal(t, []string{"eiffel tower"}, res.Grounding.Suggestions)
}

func TestGemini_NoImage(t *testing.T) {
	svc, _ := newGeminiTestServer(t, http.StatusOK,
		textEvent("I can't draw that."),
		`{"candidates":[{"finishReason":"IMAGE_SAFETY","content":{"parts":[]}}]}`,
	)

	res, err := svc.Invoke(context.Background(), imageRequest(domain.Ratio1x1))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoImage)
	assert.ErrorIs(t, err, domain.ErrBackend)
	assert.Contains(t, err.Error(), "IMAGE_SAFETY")
	assert.Contains(t, err.Error(), "I can't draw that.")
	require.NotNil(t, res)
	assert.Nil(t, res.Image)
}

func TestGemini_PromptBlocked(t *testing.T) {
	svc, _ := newGeminiTestServer(t, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`)

	_, err := svc.Invoke(context.Background(), imageRequest(domain.Ratio1x1))
	assert.ErrorIs(t, err, domain.ErrNoImage)
	assert.Contains(t, err.Error(), "prompt blocked: SAFETY")
}

func TestGemini_MalformedEvent(t *testing.T) {
	svc, _ := newGeminiTestServer(t, http.StatusOK, textEvent("ok"), `{"candidates": [`)

	_, err := svc.Invoke(context.Background(), imageRequest(domain.Ratio1x1))
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.ErrorIs(t, err, domain.ErrBackend)
}

func TestGemini_StreamError(t *testing.T) {
	svc, _ := newGeminiTestServer(t, http.StatusOK, `{"error":{"code":500,"status":"INTERNAL","message":"boom"}}`)

	_, err := svc.Invoke(context.Background(), imageRequest(domain.Ratio1x1))
	assert.ErrorIs(t, err, domain.ErrBackend)
	assert.Contains(t, err.Error(), "boom")
}

func TestGemini_HTTPErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusTooManyRequests, `{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"quota"}}`, "rate limited"},
		{http.StatusServiceUnavailable, ``, "unavailable"},
		{http.StatusBadRequest, `{"error":{"code":400,"message":"bad key"}}`, "bad key"},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			svc, _ := newGeminiTestServer(t, tc.status, tc.body)
			_, err := svc.Invoke(context.Background(), imageRequest(domain.Ratio1x1))
			assert.ErrorIs(t, err, domain.ErrBackend)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestReadStream_MultiLineAndComments(t *testing.T) {
	stream := ": keep-alive\n\n" +
		"data: {\"candidates\":[{\"content\":\n" +
		"data: {\"parts\":[{\"text\":\"joined\"}]}}]}\n\n" +
		"data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"hidden\",\"thought\":true},{\"text\":\"!\"}]}}]}"

	var chunks []Chunk
	err := readStream(strings.NewReader(stream), func(c Chunk) { chunks = append(chunks, c) })
	require.NoError(t, err)
	assert.Equal(t, "joined!", FoldChunks(chunks).Text())
}

func TestReadStream_SnakeCaseInlineData(t *testing.T) {
	payload := fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"inline_data":{"data":%q}}]}}]}`,
		base64.StdEncoding.EncodeToString(pngHeader))

	var chunks []Chunk
	require.NoError(t, readStream(strings.NewReader("data: "+payload+"\n\n"), func(c Chunk) { chunks = append(chunks, c) }))
	agg := FoldChunks(chunks)
	require.NotNil(t, agg.Image)
	assert.Equal(t, "image/png", agg.Image.MimeType)
}
