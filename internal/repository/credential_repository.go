package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-news-api/internal/models"
)

// CredentialRepository stores AI provider keys.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository constructs the repository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// List returns every stored provider credential.
func (r *CredentialRepository) List(ctx context.Context) ([]models.Credential, error) {
	const query = `SELECT id, provider, api_key, is_active, created_at, updated_at FROM api_keys ORDER BY provider ASC`
	var creds []models.Credential
	if err := r.db.SelectContext(ctx, &creds, query); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return creds, nil
}

// Upsert stores the key for a provider, replacing any previous one.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	const query = `INSERT INTO api_keys (provider, api_key, is_active)
VALUES ($1, $2, $3)
ON CONFLICT (provider)
DO UPDATE SET api_key = EXCLUDED.api_key, is_active = EXCLUDED.is_active, updated_at = NOW()
RETURNING id, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query, cred.Provider, cred.APIKey, cred.IsActive)
	if err := row.Scan(&cred.ID, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// GetActive returns the active key of the provider. sql.ErrNoRows means none is configured.
func (r *CredentialRepository) GetActive(ctx context.Context, provider string) (*models.Credential, error) {
	const query = `SELECT id, provider, api_key, is_active, created_at, updated_at FROM api_keys WHERE provider = $1 AND is_active = TRUE`
	var cred models.Credential
	if err := r.db.GetContext(ctx, &cred, query, provider); err != nil {
		return nil, fmt.Errorf("get active credential: %w", err)
	}
	return &cred, nil
}
