package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-news-api/pkg/config"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

type stubProvider struct {
	name      string
	ocrErr    error
	structErr error
	calls     int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) RecognizeText(ctx context.Context, image []byte, mimeType string) (*OCRResult, error) {
	s.calls++
	if s.ocrErr != nil {
		return nil, s.ocrErr
	}
	return &OCRResult{Text: s.name + " text", Confidence: OCRConfidence, Language: OCRLanguage}, nil
}

func (s *stubProvider) Structure(ctx context.Context, text string, pageNumber int) (*Structured, error) {
	s.calls++
	if s.structErr != nil {
		return nil, s.structErr
	}
	return &Structured{Title: s.name, FullText: text}, nil
}

type stubCredentials map[string]string

func (s stubCredentials) ActiveKey(ctx context.Context, provider string) (string, bool, error) {
	if provider == "broken" {
		return "", false, errors.New("db down")
	}
	key, ok := s[provider]
	return key, ok, nil
}

func TestOracleFallsThroughToNextProvider(t *testing.T) {
	a := &stubProvider{name: "a", structErr: errors.New("quota exceeded")}
	b := &stubProvider{name: "b"}
	c := &stubProvider{name: "c"}

	var observed []string
	o := New([]Provider{a, b, c}, nil, func(provider, operation string, _ time.Duration, err error) {
		observed = append(observed, provider+":"+operation+":"+boolLabel(err == nil))
	})

	out, err := o.Structure(context.Background(), "본문", 2)
	require.NoError(t, err)
	assert.Equal(t, "b", out.Title)
	assert.Equal(t, "b", out.Provider)
	assert.Equal(t, 0, c.calls)
	assert.Equal(t, []string{"a:structure:fail", "b:structure:ok"}, observed)
}

type silentProvider struct{ calls int }

func (s *silentProvider) Name() string { return "silent" }

func (s *silentProvider) RecognizeText(ctx context.Context, image []byte, mimeType string) (*OCRResult, error) {
	s.calls++
	return nil, nil
}

func (s *silentProvider) Structure(ctx context.Context, text string, pageNumber int) (*Structured, error) {
	s.calls++
	return nil, nil
}

func TestOracleTreatsMissingResultAsFailure(t *testing.T) {
	silent := &silentProvider{}
	next := &stubProvider{name: "next"}
	o := New([]Provider{silent, next}, nil, nil)

	ocr, err := o.RecognizeText(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "next", ocr.Provider)

	out, err := o.Structure(context.Background(), "본문", 1)
	require.NoError(t, err)
	assert.Equal(t, "next", out.Provider)
	assert.Equal(t, 2, silent.calls)

	_, err = New([]Provider{silent}, nil, nil).Structure(context.Background(), "본문", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNoProviderAvailable))
	assert.Contains(t, err.Error(), "silent returned no result")
}

func TestOracleAllProvidersFail(t *testing.T) {
	last := errors.New("overloaded")
	o := New([]Provider{
		&stubProvider{name: "a", ocrErr: errors.New("boom")},
		&stubProvider{name: "b", ocrErr: last},
	}, nil, nil)

	_, err := o.RecognizeText(context.Background(), []byte("img"), "image/jpeg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNoProviderAvailable))
	assert.True(t, errors.Is(err, last))
}

func TestOracleWithoutProviders(t *testing.T) {
	o := New(nil, nil, nil)
	_, err := o.Structure(context.Background(), "x", 1)
	assert.True(t, errors.Is(err, appErrors.ErrNoProviderAvailable))
	assert.Empty(t, o.Providers())
}

func TestOracleStopsOnCancelledContext(t *testing.T) {
	a := &stubProvider{name: "a"}
	o := New([]Provider{a}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.RecognizeText(ctx, nil, "")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, a.calls)
}

func TestBuilderSkipsMissingCredentials(t *testing.T) {
	b := NewBuilder(config.ProvidersConfig{Order: []string{"openai", "broken", "mystery", "gemini", "anthropic"}},
		stubCredentials{"gemini": "g-key", "anthropic": "  "}, nil, nil, nil)
	b.Register("broken", func(string) Provider { return &stubProvider{name: "broken"} })

	o, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini"}, o.Providers())
}

func TestBuilderDefaultOrder(t *testing.T) {
	b := NewBuilder(config.ProvidersConfig{}, stubCredentials{"anthropic": "k", "openai": "k"}, nil, nil, nil)
	assert.Equal(t, []string{"openai", "gemini", "anthropic"}, b.Order())

	o, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"openai", "anthropic"}, o.Providers())
}

func boolLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
