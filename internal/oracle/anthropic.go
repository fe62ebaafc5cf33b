package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/church-news-api/pkg/config"
)

// AnthropicName identifies the Anthropic provider.
const AnthropicName = "anthropic"

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

// AnthropicProvider talks to the messages endpoint.
type AnthropicProvider struct {
	apiKey string
	cfg    config.AnthropicConfig
	http   transport
}

// NewAnthropicProvider constructs the provider.
func NewAnthropicProvider(apiKey string, cfg config.AnthropicConfig, client *http.Client, retry RetryPolicy) *AnthropicProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-opus-20240229"
	}
	if cfg.Version == "" {
		cfg.Version = "2023-06-01"
	}
	return &AnthropicProvider{
		apiKey: apiKey,
		cfg:    cfg,
		http:   newTransport(AnthropicName, client, retry),
	}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return AnthropicName }

// RecognizeText implements Provider.
func (p *AnthropicProvider) RecognizeText(ctx context.Context, image []byte, mimeType string) (*OCRResult, error) {
	text, err := p.send(ctx, []anthropicBlock{
		{Type: "image", Source: &anthropicSource{Type: "base64", MediaType: mimeOrDefault(mimeType), Data: base64.StdEncoding.EncodeToString(image)}},
		{Type: "text", Text: ocrPrompt},
	})
	if err != nil {
		return nil, err
	}
	return &OCRResult{Text: text, Confidence: OCRConfidence, Language: OCRLanguage, Provider: AnthropicName}, nil
}

// Structure implements Provider.
func (p *AnthropicProvider) Structure(ctx context.Context, text string, pageNumber int) (*Structured, error) {
	reply, err := p.send(ctx, []anthropicBlock{{Type: "text", Text: structurePrompt(text, pageNumber) + jsonReplySuffix}})
	if err != nil {
		return nil, err
	}
	out, err := parseStructured(reply)
	if err != nil {
		return nil, err
	}
	out.Provider = AnthropicName
	return out, nil
}

func (p *AnthropicProvider) send(ctx context.Context, blocks []anthropicBlock) (string, error) {
	req := anthropicRequest{
		Model:     p.cfg.Model,
		MaxTokens: 4096,
		Messages:  []anthropicMessage{{Role: "user", Content: blocks}},
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": p.cfg.Version,
	}
	var resp anthropicResponse
	if err := p.http.postJSON(ctx, strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/messages", headers, req, &resp); err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", errors.New("anthropic returned no text block")
}
