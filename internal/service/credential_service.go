package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/church-news-api/internal/dto"
	"github.com/noah-isme/church-news-api/internal/models"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

type credentialStore interface {
	List(ctx context.Context) ([]models.Credential, error)
	Upsert(ctx context.Context, cred *models.Credential) error
	GetActive(ctx context.Context, provider string) (*models.Credential, error)
}

// CredentialService manages AI provider secrets.
type CredentialService struct {
	repo      credentialStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCredentialService constructs the service.
func NewCredentialService(repo credentialStore, validate *validator.Validate, logger *zap.Logger) *CredentialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{repo: repo, validator: validate, logger: logger}
}

// List returns every provider with its key masked.
func (s *CredentialService) List(ctx context.Context) ([]dto.CredentialResponse, error) {
	creds, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list credentials")
	}
	out := make([]dto.CredentialResponse, 0, len(creds))
	for _, cred := range creds {
		out = append(out, toCredentialResponse(cred))
	}
	return out, nil
}

// Upsert stores a provider key. New keys are active unless stated otherwise.
func (s *CredentialService) Upsert(ctx context.Context, req dto.UpsertCredentialRequest) (*dto.CredentialResponse, error) {
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	req.APIKey = strings.TrimSpace(req.APIKey)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid credential payload")
	}
	cred := &models.Credential{Provider: req.Provider, APIKey: req.APIKey, IsActive: true}
	if req.IsActive != nil {
		cred.IsActive = *req.IsActive
	}
	if err := s.repo.Upsert(ctx, cred); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save credential")
	}
	s.logger.Sugar().Infow("credential stored", "provider", cred.Provider, "active", cred.IsActive)
	resp := toCredentialResponse(*cred)
	return &resp, nil
}

// GetActive returns the active credential of a provider.
func (s *CredentialService) GetActive(ctx context.Context, provider string) (*models.Credential, error) {
	cred, err := s.repo.GetActive(ctx, strings.ToLower(provider))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active credential for "+provider)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credential")
	}
	return cred, nil
}

// ActiveKey resolves a provider secret for the oracle builder.
func (s *CredentialService) ActiveKey(ctx context.Context, provider string) (string, bool, error) {
	cred, err := s.repo.GetActive(ctx, strings.ToLower(provider))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return cred.APIKey, true, nil
}

func toCredentialResponse(cred models.Credential) dto.CredentialResponse {
	return dto.CredentialResponse{
		ID:        cred.ID,
		Provider:  cred.Provider,
		MaskedKey: maskSecret(cred.APIKey),
		IsActive:  cred.IsActive,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: cred.UpdatedAt,
	}
}

// maskSecret keeps the first and last four characters of keys long enough to spare them.
func maskSecret(secret string) string {
	if len(secret) <= 12 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
