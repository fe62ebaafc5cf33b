package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/church-news-api/pkg/config"
)

// OpenAIName identifies the OpenAI provider in credentials and ordering.
const OpenAIName = "openai"

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAIProvider talks to the chat completions endpoint.
type OpenAIProvider struct {
	apiKey string
	cfg    config.OpenAIConfig
	http   transport
}

// NewOpenAIProvider constructs the provider.
func NewOpenAIProvider(apiKey string, cfg config.OpenAIConfig, client *http.Client, retry RetryPolicy) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "gpt-4o"
	}
	if cfg.TextModel == "" {
		cfg.TextModel = cfg.VisionModel
	}
	return &OpenAIProvider{
		apiKey: apiKey,
		cfg:    cfg,
		http:   newTransport(OpenAIName, client, retry),
	}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return OpenAIName }

// RecognizeText implements Provider.
func (p *OpenAIProvider) RecognizeText(ctx context.Context, image []byte, mimeType string) (*OCRResult, error) {
	req := openAIRequest{
		Model: p.cfg.VisionModel,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []openAIContentPart{
				{Type: "text", Text: ocrPrompt},
				{Type: "image_url", ImageURL: &openAIImageURL{URL: "data:" + mimeOrDefault(mimeType) + ";base64," + base64.StdEncoding.EncodeToString(image)}},
			},
		}},
		MaxTokens: 4096,
	}
	text, err := p.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	return &OCRResult{Text: text, Confidence: OCRConfidence, Language: OCRLanguage, Provider: OpenAIName}, nil
}

// Structure implements Provider.
func (p *OpenAIProvider) Structure(ctx context.Context, text string, pageNumber int) (*Structured, error) {
	temperature := 0.3
	req := openAIRequest{
		Model:          p.cfg.TextModel,
		Messages:       []openAIMessage{{Role: "user", Content: structurePrompt(text, pageNumber)}},
		Temperature:    &temperature,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	}
	reply, err := p.complete(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := parseStructured(reply)
	if err != nil {
		return nil, err
	}
	out.Provider = OpenAIName
	return out, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, req openAIRequest) (string, error) {
	var resp openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := p.http.postJSON(ctx, strings.TrimRight(p.cfg.BaseURL, "/")+"/chat/completions", headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("openai returned an empty reply")
	}
	return resp.Choices[0].Message.Content, nil
}

func mimeOrDefault(mimeType string) string {
	if strings.TrimSpace(mimeType) == "" {
		return "image/jpeg"
	}
	return mimeType
}
