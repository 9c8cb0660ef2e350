package server

import (
	"github.com/eln-app/eln-api/internal/config"
	"github.com/eln-app/eln-api/internal/handler"
	"github.com/eln-app/eln-api/internal/server/middleware"
	"github.com/eln-app/eln-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ProvideRouter builds the gin engine with every route registered.
func ProvideRouter(
	cfg *config.Config,
	h *handler.Handlers,
	apiKeyAuth *middleware.APIKeyAuthMiddleware,
	jwtAuth *middleware.JWTAuthMiddleware,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(logger), middleware.RequestLogger(logger))

	SetupRouter(r, h, apiKeyAuth, jwtAuth, gatherer)
	return r
}

// SetupRouter registers the routes on r.
func SetupRouter(
	r *gin.Engine,
	h *handler.Handlers,
	apiKeyAuth *middleware.APIKeyAuthMiddleware,
	jwtAuth *middleware.JWTAuthMiddleware,
	gatherer prometheus.Gatherer,
) {
	r.GET("/healthz", h.Health.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")

	// API key first; requests it does not claim fall through to JWT
	me := v1.Group("",
		apiKeyAuth.Handler(service.AuthModeOptional),
		jwtAuth.Handler(),
		middleware.RequireAuthenticated(),
		middleware.RequireAPIKeyPermission(),
	)
	me.GET("/me", h.APIKey.Me)

	keyOnly := v1.Group("",
		apiKeyAuth.Handler(service.AuthModeRequired),
		middleware.RequireAPIKeyPermission(),
	)
	keyOnly.GET("/usage", h.APIKey.Usage)

	adminGroup := v1.Group("/admin", jwtAuth.Handler(), middleware.RequireAdmin())
	{
		apiKeys := adminGroup.Group("/api-keys")
		apiKeys.POST("", h.Admin.APIKey.Create)
		apiKeys.PATCH("/:token", h.Admin.APIKey.Update)
		apiKeys.POST("/:token/invalidate", h.Admin.APIKey.Invalidate)
	}
}
