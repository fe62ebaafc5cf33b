package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-news-api/internal/dto"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
	"github.com/noah-isme/church-news-api/pkg/response"
)

type credentialService interface {
	List(ctx context.Context) ([]dto.CredentialResponse, error)
	Upsert(ctx context.Context, req dto.UpsertCredentialRequest) (*dto.CredentialResponse, error)
}

// CredentialHandler manages AI provider keys.
type CredentialHandler struct {
	service credentialService
}

// NewCredentialHandler constructs the handler.
func NewCredentialHandler(service credentialService) *CredentialHandler {
	return &CredentialHandler{service: service}
}

// List godoc
// @Summary List AI provider credentials
// @Tags Credentials
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api-keys [get]
func (h *CredentialHandler) List(c *gin.Context) {
	creds, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, creds, nil)
}

// Upsert godoc
// @Summary Store an AI provider key
// @Tags Credentials
// @Accept json
// @Produce json
// @Param payload body dto.UpsertCredentialRequest true "Credential payload"
// @Success 201 {object} response.Envelope
// @Router /api-keys [post]
func (h *CredentialHandler) Upsert(c *gin.Context) {
	var req dto.UpsertCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	cred, err := h.service.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cred)
}
