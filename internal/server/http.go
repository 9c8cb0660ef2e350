// Package server wires the HTTP server.
package server

import (
	"net/http"
	"time"

	"github.com/eln-app/eln-api/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
)

// ProviderSet is the server layer providers.
var ProviderSet = wire.NewSet(
	ProvideRouter,
	ProvideHTTPServer,
)

// ProvideHTTPServer creates the http.Server for router.
func ProvideHTTPServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
