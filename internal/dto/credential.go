package dto

import "time"

// UpsertCredentialRequest stores the secret of one AI provider.
type UpsertCredentialRequest struct {
	Provider string `json:"provider" validate:"required,oneof=openai gemini anthropic"`
	APIKey   string `json:"api_key" validate:"required,min=8"`
	IsActive *bool  `json:"is_active"`
}

// CredentialResponse never carries the full secret.
type CredentialResponse struct {
	ID        int64     `json:"id"`
	Provider  string    `json:"provider"`
	MaskedKey string    `json:"masked_key"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
