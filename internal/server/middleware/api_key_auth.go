package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/eln-app/eln-api/internal/config"
	"github.com/eln-app/eln-api/internal/pkg/ip"
	"github.com/eln-app/eln-api/internal/pkg/logger"
	"github.com/eln-app/eln-api/internal/pkg/response"
	"github.com/eln-app/eln-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIKeyAuthMiddleware builds per-route API key authenticators.
type APIKeyAuthMiddleware struct {
	gateway *service.APIKeyGateway
	header  string
	logger  *zap.Logger
}

// NewAPIKeyAuthMiddleware creates the middleware factory. The credential is
// read from the configured header only.
func NewAPIKeyAuthMiddleware(gateway *service.APIKeyGateway, cfg *config.Config, logger *zap.Logger) *APIKeyAuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	header := cfg.APIKey.Header
	if header == "" {
		header = "X-API-Key"
	}
	return &APIKeyAuthMiddleware{gateway: gateway, header: header, logger: logger.Named("middleware.apikey")}
}

// Handler returns the authenticator for mode.
//
// Optional: an absent, invalid or unverifiable key continues anonymously so
// later authenticators can claim the request; only a quota rejection stops it.
// Required: anything but a valid, admitted key stops the request.
func (m *APIKeyAuthMiddleware) Handler(mode service.AuthMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &service.AuthRequest{
			Token:     strings.TrimSpace(c.GetHeader(m.header)),
			Endpoint:  c.Request.URL.Path,
			Method:    c.Request.Method,
			IP:        ip.FromRequest(c.Request),
			UserAgent: c.Request.UserAgent(),
		}

		res, err := m.gateway.Authenticate(c.Request.Context(), req)
		res, err = service.ApplyAuthMode(mode, res, err)

		if res.RateLimit != nil {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.RateLimit.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.RateLimit.Remaining()))
		}
		if err != nil {
			var rle *service.RateLimitExceededError
			if errors.As(err, &rle) {
				c.Header("Retry-After", strconv.Itoa(rle.RetryAfterSeconds()))
			}
			response.ErrorFrom(c, err)
			return
		}

		if res.Authenticated() {
			setAPIKeyAuth(c, res)
		} else if res.Outcome == service.AuthOutcomeUnavailable {
			m.logger.Warn("api key not verifiable, continuing anonymously",
				logger.TokenField(req.Token),
				zap.String("path", req.Endpoint),
			)
		}
		c.Next()
	}
}
