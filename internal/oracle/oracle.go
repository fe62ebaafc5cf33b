package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/church-news-api/pkg/config"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

// Observer receives the outcome of every provider attempt.
type Observer func(provider, operation string, duration time.Duration, err error)

// Oracle tries its providers in order and returns the first success.
// The provider list is fixed at construction.
type Oracle struct {
	providers []Provider
	logger    *zap.Logger
	observe   Observer
}

// New constructs an oracle over the ordered providers.
func New(providers []Provider, logger *zap.Logger, observe Observer) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	list := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			list = append(list, p)
		}
	}
	return &Oracle{providers: list, logger: logger, observe: observe}
}

// Providers returns the provider names in attempt order.
func (o *Oracle) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

// RecognizeText runs OCR over a page image.
func (o *Oracle) RecognizeText(ctx context.Context, image []byte, mimeType string) (*OCRResult, error) {
	var result *OCRResult
	err := o.try(ctx, "ocr", func(p Provider) error {
		res, err := p.RecognizeText(ctx, image, mimeType)
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("%s returned no result", p.Name())
		}
		if res.Provider == "" {
			res.Provider = p.Name()
		}
		result = res
		return nil
	})
	return result, err
}

// Structure turns recognized text into article data.
func (o *Oracle) Structure(ctx context.Context, text string, pageNumber int) (*Structured, error) {
	var result *Structured
	err := o.try(ctx, "structure", func(p Provider) error {
		res, err := p.Structure(ctx, text, pageNumber)
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("%s returned no result", p.Name())
		}
		if res.Provider == "" {
			res.Provider = p.Name()
		}
		result = res
		return nil
	})
	return result, err
}

func (o *Oracle) try(ctx context.Context, operation string, call func(Provider) error) error {
	if len(o.providers) == 0 {
		return appErrors.Clone(appErrors.ErrNoProviderAvailable, "no AI provider configured")
	}

	var lastErr error
	for _, p := range o.providers {
		if err := ctx.Err(); err != nil {
			return err
		}
		started := time.Now()
		err := call(p)
		if o.observe != nil {
			o.observe(p.Name(), operation, time.Since(started), err)
		}
		if err == nil {
			return nil
		}
		lastErr = err
		o.logger.Sugar().Warnw("provider failed, trying next", "provider", p.Name(), "operation", operation, "error", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return appErrors.Wrap(lastErr, appErrors.ErrNoProviderAvailable.Code, appErrors.ErrNoProviderAvailable.Status,
		fmt.Sprintf("all AI providers failed for %s", operation))
}

// CredentialSource resolves the active secret of a provider. ok is false when none is configured.
type CredentialSource interface {
	ActiveKey(ctx context.Context, provider string) (key string, ok bool, err error)
}

// Factory constructs a provider from its secret.
type Factory func(apiKey string) Provider

// Builder resolves credentials and assembles an Oracle in the configured order.
type Builder struct {
	order     []string
	creds     CredentialSource
	factories map[string]Factory
	logger    *zap.Logger
	observe   Observer
}

// NewBuilder registers the three built-in providers.
func NewBuilder(cfg config.ProvidersConfig, creds CredentialSource, client *http.Client, logger *zap.Logger, observe Observer) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	order := cfg.Order
	if len(order) == 0 {
		order = []string{OpenAIName, GeminiName, AnthropicName}
	}
	retry := RetryPolicy{MaxRetries: cfg.MaxRetries}

	b := &Builder{
		order:   order,
		creds:   creds,
		logger:  logger,
		observe: observe,
		factories: map[string]Factory{
			OpenAIName: func(key string) Provider {
				return NewOpenAIProvider(key, cfg.OpenAI, client, retry)
			},
			GeminiName: func(key string) Provider {
				return NewGeminiProvider(key, cfg.Gemini, client, retry)
			},
			AnthropicName: func(key string) Provider {
				return NewAnthropicProvider(key, cfg.Anthropic, client, retry)
			},
		},
	}
	return b
}

// Register adds or replaces a provider factory.
func (b *Builder) Register(name string, factory Factory) {
	b.factories[strings.ToLower(name)] = factory
}

// Order returns the configured provider order.
func (b *Builder) Order() []string {
	return append([]string(nil), b.order...)
}

// Build resolves credentials now and returns an oracle holding the enabled providers.
// A provider without credentials is skipped; a lookup error is logged and treated the same.
func (b *Builder) Build(ctx context.Context) (*Oracle, error) {
	providers := make([]Provider, 0, len(b.order))
	for _, name := range b.order {
		name = strings.ToLower(strings.TrimSpace(name))
		factory, ok := b.factories[name]
		if !ok {
			b.logger.Sugar().Warnw("unknown AI provider in order", "provider", name)
			continue
		}
		key, ok, err := b.creds.ActiveKey(ctx, name)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			b.logger.Sugar().Warnw("credential lookup failed", "provider", name, "error", err)
			continue
		}
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		providers = append(providers, factory(key))
	}
	return New(providers, b.logger, b.observe), nil
}
