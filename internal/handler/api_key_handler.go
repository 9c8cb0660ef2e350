package handler

import (
	"net/http"

	"github.com/eln-app/eln-api/internal/handler/dto"
	"github.com/eln-app/eln-api/internal/pkg/response"
	middleware2 "github.com/eln-app/eln-api/internal/server/middleware"
	"github.com/eln-app/eln-api/internal/service"

	"github.com/gin-gonic/gin"
)

// APIKeyHandler serves caller self-service endpoints.
type APIKeyHandler struct {
	apiKeyService *service.APIKeyService
}

// NewAPIKeyHandler creates a new APIKeyHandler
func NewAPIKeyHandler(apiKeyService *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{apiKeyService: apiKeyService}
}

// Me returns the authenticated caller
// GET /api/v1/me
func (h *APIKeyHandler) Me(c *gin.Context) {
	subject, ok := middleware2.GetAuthSubjectFromContext(c)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "auth subject not found")
		return
	}

	me := dto.Me{
		AuthMethod: subject.Method,
		UserID:     subject.UserID,
		Anonymous:  subject.UserID == nil,
		Role:       subject.Role,
	}
	if key, ok := middleware2.GetAPIKeyFromContext(c); ok {
		me.APIKey = dto.APIKeySummaryFromService(key)
	}
	response.Success(c, me)
}

// Usage returns the key's counters and current quota window
// GET /api/v1/usage
func (h *APIKeyHandler) Usage(c *gin.Context) {
	key, ok := middleware2.GetAPIKeyFromContext(c)
	if !ok {
		response.ErrorFrom(c, service.ErrAPIKeyRequired)
		return
	}

	window, err := h.apiKeyService.Usage(c.Request.Context(), key)
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}

	// 计数器从存储读取，缓存快照可能落后
	stored, err := h.apiKeyService.Get(c.Request.Context(), key.Token)
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}

	response.Success(c, dto.APIKeyUsage{
		TotalRequests: stored.TotalRequests,
		LastUsedAt:    stored.LastUsedAt,
		Window:        dto.QuotaWindowFromService(window),
	})
}
