package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/church-news-api/pkg/config"
)

// GeminiName identifies the Gemini provider.
const GeminiName = "gemini"

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiProvider talks to the generateContent endpoint.
type GeminiProvider struct {
	apiKey string
	cfg    config.GeminiConfig
	http   transport
}

// NewGeminiProvider constructs the provider.
func NewGeminiProvider(apiKey string, cfg config.GeminiConfig, client *http.Client, retry RetryPolicy) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "gemini-1.5-flash"
	}
	if cfg.TextModel == "" {
		cfg.TextModel = cfg.VisionModel
	}
	return &GeminiProvider{
		apiKey: apiKey,
		cfg:    cfg,
		http:   newTransport(GeminiName, client, retry),
	}
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return GeminiName }

// RecognizeText implements Provider.
func (p *GeminiProvider) RecognizeText(ctx context.Context, image []byte, mimeType string) (*OCRResult, error) {
	req := geminiRequest{Contents: []geminiContent{{
		Role: "user",
		Parts: []geminiPart{
			{Text: ocrPrompt},
			{InlineData: &geminiInlineData{MimeType: mimeOrDefault(mimeType), Data: base64.StdEncoding.EncodeToString(image)}},
		},
	}}}
	text, err := p.generate(ctx, p.cfg.VisionModel, req)
	if err != nil {
		return nil, err
	}
	return &OCRResult{Text: text, Confidence: OCRConfidence, Language: OCRLanguage, Provider: GeminiName}, nil
}

// Structure implements Provider.
func (p *GeminiProvider) Structure(ctx context.Context, text string, pageNumber int) (*Structured, error) {
	req := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: structurePrompt(text, pageNumber) + jsonReplySuffix}}}},
		GenerationConfig: &geminiGenerationConfig{Temperature: 0.3},
	}
	reply, err := p.generate(ctx, p.cfg.TextModel, req)
	if err != nil {
		return nil, err
	}
	out, err := parseStructured(reply)
	if err != nil {
		return nil, err
	}
	out.Provider = GeminiName
	return out, nil
}

func (p *GeminiProvider) generate(ctx context.Context, model string, req geminiRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(model))
	var resp geminiResponse
	if err := p.http.postJSON(ctx, endpoint, map[string]string{"x-goog-api-key": p.apiKey}, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errors.New("gemini returned an empty reply")
	}
	return sb.String(), nil
}
