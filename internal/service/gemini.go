package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/set-night/imagebroker/internal/config"
	"github.com/set-night/imagebroker/internal/domain"
)

// BackendRequest is one call to the generation backend. Ratio is only sent
// when WantImage is set.
type BackendRequest struct {
	Contents          []domain.Turn
	SystemInstruction string
	Ratio             domain.Ratio
	WantImage         bool
	UseSearch         bool
}

type BackendResult struct {
	Text         string
	Image        *domain.ImageData
	FinishReason string
	BlockReason  string
	Grounding    *Grounding
}

// Backend is the remote generation capability.
type Backend interface {
	Invoke(ctx context.Context, req BackendRequest) (*BackendResult, error)
}

type GeminiService struct {
	apiKey     string
	baseURL    string
	imageModel string
	chatModel  string
	httpClient *http.Client
}

func NewGeminiService(cfg *config.Config) *GeminiService {
	return &GeminiService{
		apiKey:     cfg.GeminiAPIKey,
		baseURL:    strings.TrimSuffix(cfg.GeminiBaseURL, "/"),
		imageModel: cfg.ImageModel,
		chatModel:  cfg.ChatModel,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
}

type geminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type geminiPart struct {
	Text          string      `json:"text,omitempty"`
	InlineData    *geminiBlob `json:"inlineData,omitempty"`
	InlineDataAlt *geminiBlob `json:"inline_data,omitempty"`
	Thought       bool        `json:"thought,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type geminiResponse struct {
	Candidates []struct {
		Content           geminiContent `json:"content"`
		FinishReason      string        `json:"finishReason"`
		GroundingMetadata *struct {
			WebSearchQueries []string `json:"webSearchQueries"`
			SearchEntryPoint *struct {
				RenderedContent string `json:"renderedContent"`
			} `json:"searchEntryPoint"`
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *geminiError `json:"error"`
}

// Invoke streams a generateContent call and folds the chunks into one result.
// Image requests that complete without an image return ErrNoImage together
// with whatever the backend did return.
func (s *GeminiService) Invoke(ctx context.Context, req BackendRequest) (*BackendResult, error) {
	model := s.chatModel
	if req.WantImage {
		model = s.imageModel
	}

	payload, err := json.Marshal(buildGeminiRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", s.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini request: %w", domain.ErrBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: rate limited by Gemini (429): %s", domain.ErrBackend, apiErrorMessage(body))
		case http.StatusServiceUnavailable:
			return nil, fmt.Errorf("%w: Gemini service unavailable (503): %s", domain.ErrBackend, apiErrorMessage(body))
		}
		return nil, fmt.Errorf("%w: gemini returned %d: %s", domain.ErrBackend, resp.StatusCode, apiErrorMessage(body))
	}

	agg := &Aggregate{}
	if err := readStream(resp.Body, agg.Add); err != nil {
		return nil, err
	}

	result := &BackendResult{
		Text:         agg.Text(),
		Image:        agg.Image,
		FinishReason: agg.FinishReason,
		BlockReason:  agg.BlockReason,
		Grounding:    agg.Grounding,
	}
	if req.WantImage && result.Image == nil {
		return result, noImageError(result)
	}
	return result, nil
}

func buildGeminiRequest(req BackendRequest) geminiRequest {
	out := geminiRequest{Contents: make([]geminiContent, 0, len(req.Contents))}
	for _, turn := range req.Contents {
		out.Contents = append(out.Contents, toGeminiContent(turn))
	}
	if req.SystemInstruction != "" {
		out.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemInstruction}},
		}
	}
	if req.WantImage {
		out.GenerationConfig = &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		}
		if req.Ratio != "" {
			out.GenerationConfig.ImageConfig = &geminiImageConfig{AspectRatio: string(req.Ratio)}
		}
	}
	if req.UseSearch {
		out.Tools = []geminiTool{{GoogleSearch: &struct{}{}}}
	}
	return out
}

func toGeminiContent(turn domain.Turn) geminiContent {
	c := geminiContent{Role: string(turn.Role), Parts: make([]geminiPart, 0, len(turn.Parts))}
	for _, p := range turn.Parts {
		if p.Image != nil {
			c.Parts = append(c.Parts, geminiPart{
				InlineData: &geminiBlob{MimeType: p.Image.MimeType, Data: p.Image.Data},
			})
			continue
		}
		c.Parts = append(c.Parts, geminiPart{Text: p.Text})
	}
	return c
}

// readStream parses a server-sent event stream and hands each decoded
// event to fn in arrival order.
func readStream(r io.Reader, fn func(Chunk)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), config.MaxStreamEventSize)

	var data strings.Builder
	flush := func() error {
		if data.Len() == 0 {
			return nil
		}
		payload := data.String()
		data.Reset()
		if strings.TrimSpace(payload) == "[DONE]" {
			return nil
		}
		chunk, err := decodeChunk([]byte(payload))
		if err != nil {
			return err
		}
		fn(chunk)
		return nil
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("%w: stream event too large", domain.ErrMalformedResponse)
		}
		return fmt.Errorf("%w: read stream: %w", domain.ErrBackend, err)
	}
	return flush()
}

func decodeChunk(payload []byte) (Chunk, error) {
	var resp geminiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Chunk{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if resp.Error != nil {
		return Chunk{}, fmt.Errorf("%w: gemini stream error %d %s: %s",
			domain.ErrBackend, resp.Error.Code, resp.Error.Status, resp.Error.Message)
	}

	var chunk Chunk
	if resp.PromptFeedback != nil {
		chunk.BlockReason = resp.PromptFeedback.BlockReason
	}
	if len(resp.Candidates) == 0 {
		return chunk, nil
	}

	cand := resp.Candidates[0]
	chunk.FinishReason = cand.FinishReason

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		blob := part.InlineData
		if blob == nil {
			blob = part.InlineDataAlt
		}
		switch {
		case blob != nil && len(blob.Data) > 0:
			mimeType := blob.MimeType
			if mimeType == "" {
				mimeType = DetectMimeType(blob.Data, "")
			}
			chunk.Images = append(chunk.Images, domain.ImageData{Data: blob.Data, MimeType: mimeType, Source: "gemini"})
		case part.Text != "" && !part.Thought:
			text.WriteString(part.Text)
		}
	}
	chunk.Text = text.String()

	if gm := cand.GroundingMetadata; gm != nil {
		g := &Grounding{Queries: gm.WebSearchQueries}
		for _, gc := range gm.GroundingChunks {
			if gc.Web != nil && gc.Web.URI != "" {
				g.Sources = append(g.Sources, GroundingSource{Title: gc.Web.Title, URI: gc.Web.URI})
			}
		}
		if gm.SearchEntryPoint != nil {
			g.Suggestions = ParseSuggestions(gm.SearchEntryPoint.RenderedContent)
		}
		chunk.Grounding = g
	}
	return chunk, nil
}

func apiErrorMessage(body []byte) string {
	var wrapped struct {
		Error *geminiError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		if wrapped.Error.Status != "" {
			return wrapped.Error.Status + ": " + wrapped.Error.Message
		}
		return wrapped.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response body"
	}
	return msg
}

func noImageError(res *BackendResult) error {
	var details []string
	if res.BlockReason != "" {
		details = append(details, "prompt blocked: "+res.BlockReason)
	}
	if res.FinishReason != "" && res.FinishReason != "STOP" {
		details = append(details, "finish reason: "+res.FinishReason)
	}
	if text := strings.TrimSpace(res.Text); text != "" {
		details = append(details, "model said: "+text)
	}
	if len(details) == 0 {
		return domain.ErrNoImage
	}
	return fmt.Errorf("%w (%s)", domain.ErrNoImage, strings.Join(details, "; "))
}
