package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-news-api/internal/dto"
	"github.com/noah-isme/church-news-api/internal/models"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

type memCredentialStore struct {
	creds  map[string]models.Credential
	getErr error
}

func (m *memCredentialStore) List(context.Context) ([]models.Credential, error) {
	out := make([]models.Credential, 0, len(m.creds))
	for _, c := range m.creds {
		out = append(out, c)
	}
	return out, nil
}

func (m *memCredentialStore) Upsert(_ context.Context, cred *models.Credential) error {
	if m.creds == nil {
		m.creds = map[string]models.Credential{}
	}
	cred.ID = int64(len(m.creds) + 1)
	m.creds[cred.Provider] = *cred
	return nil
}

func (m *memCredentialStore) GetActive(_ context.Context, provider string) (*models.Credential, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.creds[provider]
	if !ok || !c.IsActive {
		return nil, fmt.Errorf("get active credential: %w", sql.ErrNoRows)
	}
	return &c, nil
}

func TestCredentialServiceUpsertDefaultsActiveAndMasks(t *testing.T) {
	store := &memCredentialStore{}
	svc := NewCredentialService(store, nil, nil)

	resp, err := svc.Upsert(context.Background(), dto.UpsertCredentialRequest{Provider: " OpenAI ", APIKey: "sk-test-1234567890abcd"})
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Provider)
	assert.True(t, resp.IsActive)
	assert.Equal(t, "sk-t**************abcd", resp.MaskedKey)
	assert.Equal(t, "sk-test-1234567890abcd", store.creds["openai"].APIKey)

	inactive := false
	_, err = svc.Upsert(context.Background(), dto.UpsertCredentialRequest{Provider: "gemini", APIKey: "gm-key-000000000", IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, store.creds["gemini"].IsActive)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, item := range list {
		assert.NotContains(t, item.MaskedKey, "1234567890")
	}
}

func TestCredentialServiceUpsertValidation(t *testing.T) {
	svc := NewCredentialService(&memCredentialStore{}, nil, nil)
	cases := []dto.UpsertCredentialRequest{
		{Provider: "mistral", APIKey: "abcdefghijkl"},
		{Provider: "openai", APIKey: "short"},
		{Provider: "", APIKey: "abcdefghijkl"},
	}
	for _, req := range cases {
		_, err := svc.Upsert(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, 400, appErrors.FromError(err).Status)
	}
}

func TestCredentialServiceActiveKey(t *testing.T) {
	store := &memCredentialStore{creds: map[string]models.Credential{
		"openai":    {Provider: "openai", APIKey: "sk-live", IsActive: true},
		"anthropic": {Provider: "anthropic", APIKey: "sk-ant", IsActive: false},
	}}
	svc := NewCredentialService(store, nil, nil)
	ctx := context.Background()

	key, ok, err := svc.ActiveKey(ctx, "OPENAI")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-live", key)

	_, ok, err = svc.ActiveKey(ctx, "anthropic")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.GetActive(ctx, "gemini")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	store.getErr = errors.New("db down")
	_, ok, err = svc.ActiveKey(ctx, "openai")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "********", maskSecret("abcdefgh"))
	assert.Equal(t, "abcd*****lmno", maskSecret("abcdefghilmno"))
}
