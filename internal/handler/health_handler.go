package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eln-app/eln-api/internal/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const healthCheckKey = "health:check"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports backend reachability.
type HealthHandler struct {
	db    Pinger
	cache service.SharedCache
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, cache service.SharedCache) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Healthz pings the key store and the shared cache in parallel
// GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "cache": "ok"}
	var dbErr, cacheErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dbErr = h.db.PingContext(gctx)
		return nil
	})
	g.Go(func() error {
		_, err := h.cache.Get(gctx, healthCheckKey)
		if !errors.Is(err, service.ErrCacheMiss) {
			cacheErr = err
		}
		return nil
	})
	_ = g.Wait()

	status := http.StatusOK
	if dbErr != nil {
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if cacheErr != nil {
		checks["cache"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
}
