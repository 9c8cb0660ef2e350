package admin

import (
	"time"

	"github.com/eln-app/eln-api/internal/handler/dto"
	"github.com/eln-app/eln-api/internal/pkg/response"
	"github.com/eln-app/eln-api/internal/service"

	"github.com/gin-gonic/gin"
)

// APIKeyHandler handles API key administration endpoints
type APIKeyHandler struct {
	apiKeyService *service.APIKeyService
}

// NewAPIKeyHandler creates a new admin APIKeyHandler
func NewAPIKeyHandler(apiKeyService *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{apiKeyService: apiKeyService}
}

// CreateAPIKeyRequest represents the request body for issuing a key
type CreateAPIKeyRequest struct {
	Name      string     `json:"name" binding:"required,max=100"`
	UserID    *int64     `json:"user_id"`
	CanRead   *bool      `json:"can_read"`
	CanWrite  bool       `json:"can_write"`
	RateLimit int        `json:"rate_limit" binding:"required,min=1"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Create issues a new key and returns its token once
// POST /api/v1/admin/api-keys
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	canRead := true
	if req.CanRead != nil {
		canRead = *req.CanRead
	}

	key, err := h.apiKeyService.Create(c.Request.Context(), service.CreateAPIKeyInput{
		Name:        req.Name,
		UserID:      req.UserID,
		Permissions: service.APIKeyPermissions{CanRead: canRead, CanWrite: req.CanWrite},
		RateLimit:   req.RateLimit,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}

	response.Success(c, dto.CreatedAPIKey{
		APIKeySummary: *dto.APIKeySummaryFromService(key),
		Token:         key.Token,
	})
}

// UpdateAPIKeyRequest represents the request body for changing a key's
// validity. clear_expiry removes the expiry and wins over expires_at.
type UpdateAPIKeyRequest struct {
	IsActive    *bool      `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

// Update changes is_active and/or expires_at
// PATCH /api/v1/admin/api-keys/:token
func (h *APIKeyHandler) Update(c *gin.Context) {
	token := c.Param("token")

	var req UpdateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	if req.IsActive == nil && req.ExpiresAt == nil && !req.ClearExpiry {
		response.BadRequest(c, "Nothing to update")
		return
	}

	ctx := c.Request.Context()
	if req.IsActive != nil {
		if err := h.apiKeyService.SetActive(ctx, token, *req.IsActive); err != nil {
			response.ErrorFrom(c, err)
			return
		}
	}
	switch {
	case req.ClearExpiry:
		if err := h.apiKeyService.SetExpiry(ctx, token, nil); err != nil {
			response.ErrorFrom(c, err)
			return
		}
	case req.ExpiresAt != nil:
		if err := h.apiKeyService.SetExpiry(ctx, token, req.ExpiresAt); err != nil {
			response.ErrorFrom(c, err)
			return
		}
	}

	key, err := h.apiKeyService.Get(ctx, token)
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, dto.APIKeySummaryFromService(key))
}

// Invalidate drops the cached validity answer for a key
// POST /api/v1/admin/api-keys/:token/invalidate
func (h *APIKeyHandler) Invalidate(c *gin.Context) {
	if err := h.apiKeyService.Invalidate(c.Request.Context(), c.Param("token")); err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, gin.H{"message": "API key cache invalidated"})
}
