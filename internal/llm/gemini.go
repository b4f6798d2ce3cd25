package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studybot/studybot/internal/config"
	"github.com/studybot/studybot/internal/logger"
	"google.golang.org/genai"
)

// GeminiSDKClient wraps the official Google Gemini Go SDK
type GeminiSDKClient struct {
	client      *genai.Client
	model       string
	visionModel string
}

// NewGeminiSDKClient creates a new Gemini client using the official Google SDK
func NewGeminiSDKClient(cfg *config.Config) (*GeminiSDKClient, error) {
	if cfg == nil || cfg.LLMToken == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	return newGeminiSDKClient(&genai.ClientConfig{
		APIKey:  cfg.LLMToken,
		Backend: genai.BackendGeminiAPI,
	}, cfg.LLMModel, cfg.LLMVisionModel)
}

func newGeminiSDKClient(cc *genai.ClientConfig, model, visionModel string) (*GeminiSDKClient, error) {
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiSDKClient{
		client:      client,
		model:       model,
		visionModel: visionModel,
	}, nil
}

// Complete runs one generation. Images are sent inline next to the prompt.
func (gc *GeminiSDKClient) Complete(ctx context.Context, req Request) (string, error) {
	if gc.client == nil {
		return "", fmt.Errorf("gemini SDK client not initialized")
	}

	model := gc.model
	parts := []*genai.Part{{Text: req.Prompt}}
	if req.HasImage() {
		if gc.visionModel != "" {
			model = gc.visionModel
		}
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: req.Image}})
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(Temperature)),
		MaxOutputTokens: MaxOutputTokens,
	}
	if req.System != "" {
		genConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	resp, err := gc.client.Models.GenerateContent(ctx, model, contents, genConfig)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code != 0 {
			return "", &StatusError{StatusCode: apiErr.Code, Body: truncate(apiErr.Message, maxErrorBody)}
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	logger.Debug("Gemini SDK Response", map[string]interface{}{
		"model":            model,
		"candidates_count": len(resp.Candidates),
		"has_image":        req.HasImage(),
	})

	if len(resp.Candidates) == 0 {
		return "", nil
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", nil
	}

	var content strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			content.WriteString(part.Text)
		}
	}

	if resp.UsageMetadata != nil {
		logger.Debug("Gemini SDK Token Usage", map[string]interface{}{
			"prompt_tokens":     resp.UsageMetadata.PromptTokenCount,
			"completion_tokens": resp.UsageMetadata.CandidatesTokenCount,
		})
	}

	return content.String(), nil
}
