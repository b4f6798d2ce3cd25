package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/studybot/studybot/internal/config"
	"github.com/studybot/studybot/internal/logger"
)

const (
	Temperature     = 0.3
	MaxOutputTokens = 1024
)

// maxErrorBody bounds the response body kept in a StatusError.
const maxErrorBody = 500

// Request is one completion call: a system instruction, the user prompt and
// an optional image for vision models.
type Request struct {
	System    string
	Prompt    string
	Image     []byte
	ImageMIME string
}

func (r Request) HasImage() bool {
	return len(r.Image) > 0
}

// Completer is the external completion service.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx answer from the completion service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("LLM API returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	endpoint    string
	token       string
	model       string
	visionModel string
	httpClient  *http.Client
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

// Message content is either a plain string or a list of ContentPart.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatResponse struct {
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Message ResponseMessage `json:"message"`
}

type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func NewClient(cfg *config.Config) *Client {
	return NewClientWithHTTP(cfg, &http.Client{})
}

// NewClientWithHTTP lets callers supply the transport. Timeouts come from the
// request context.
func NewClientWithHTTP(cfg *config.Config, httpClient *http.Client) *Client {
	return &Client{
		endpoint:    strings.TrimRight(cfg.LLMEndpoint, "/"),
		token:       cfg.LLMToken,
		model:       cfg.LLMModel,
		visionModel: cfg.LLMVisionModel,
		httpClient:  httpClient,
	}
}

// Complete sends one non-streaming chat completion. A body that does not have
// the expected shape is returned verbatim as the reply.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	reqBody := ChatRequest{
		Model:       c.model,
		Messages:    c.buildMessages(req),
		Temperature: Temperature,
		MaxTokens:   MaxOutputTokens,
		Stream:      false,
	}
	if req.HasImage() && c.visionModel != "" {
		reqBody.Model = c.visionModel
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request to %s: %w", httpReq.URL.String(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil || len(chatResp.Choices) == 0 {
		logger.Warn("Unexpected completion response shape, returning raw body", map[string]interface{}{
			"model":     reqBody.Model,
			"body_size": len(body),
		})
		return strings.ToValidUTF8(string(body), "\uFFFD"), nil
	}

	if chatResp.Usage != nil {
		logger.Debug("Completion token usage", map[string]interface{}{
			"model":             reqBody.Model,
			"prompt_tokens":     chatResp.Usage.PromptTokens,
			"completion_tokens": chatResp.Usage.CompletionTokens,
		})
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (c *Client) buildMessages(req Request) []Message {
	var messages []Message
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}

	if !req.HasImage() {
		return append(messages, Message{Role: "user", Content: req.Prompt})
	}

	mime := req.ImageMIME
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	return append(messages, Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
		},
	})
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
