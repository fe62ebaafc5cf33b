// Package oracle turns page images into text and text into structured
// articles through an ordered chain of AI providers.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// OCRConfidence is reported for every recognized page; providers do not return a score.
	OCRConfidence = 0.9
	// OCRLanguage tags recognized text.
	OCRLanguage = "ko"

	maxErrorBody   = 2048
	defaultTimeout = 90 * time.Second
)

// Provider is one interchangeable AI backend.
type Provider interface {
	Name() string
	RecognizeText(ctx context.Context, image []byte, mimeType string) (*OCRResult, error)
	Structure(ctx context.Context, text string, pageNumber int) (*Structured, error)
}

// OCRResult is the recognized text of one page.
type OCRResult struct {
	Text       string
	Confidence float64
	Language   string
	Provider   string
}

// Structured is the article data derived from recognized text.
type Structured struct {
	Title    string
	Summary  string
	FullText string
	Category string
	Author   string
	Events   []StructuredEvent
	Provider string
}

// StructuredEvent is a dated occurrence mentioned in the article.
type StructuredEvent struct {
	Type         string
	Date         *time.Time
	Title        string
	Description  string
	Location     string
	Participants []string
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the call may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// RetryPolicy bounds how often one provider call is repeated on 429/5xx.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	exp.MaxElapsedTime = 0
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// transport posts JSON payloads and decodes JSON replies.
type transport struct {
	provider string
	client   *http.Client
	retry    RetryPolicy
}

func newTransport(provider string, client *http.Client, retry RetryPolicy) transport {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return transport{provider: provider, client: client, retry: retry}
}

func (t transport) postJSON(ctx context.Context, endpoint string, headers map[string]string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", t.provider, err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build %s request: %w", t.provider, err))
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("%s request: %w", t.provider, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			statusErr := &StatusError{Provider: t.provider, StatusCode: resp.StatusCode, Body: string(snippet)}
			if statusErr.Retryable() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", t.provider, err))
		}
		return nil
	}

	return backoff.Retry(op, t.retry.backOff(ctx))
}
