//go:build wireinject
// +build wireinject

package main

import (
	"github.com/eln-app/eln-api/internal/config"
	"github.com/eln-app/eln-api/internal/handler"
	"github.com/eln-app/eln-api/internal/pkg/metrics"
	"github.com/eln-app/eln-api/internal/repository"
	"github.com/eln-app/eln-api/internal/server"
	"github.com/eln-app/eln-api/internal/server/middleware"
	"github.com/eln-app/eln-api/internal/service"

	"github.com/google/wire"
	"go.uber.org/zap"
)

func initializeApplication(cfg *config.Config, logger *zap.Logger) (*Application, func(), error) {
	wire.Build(
		metrics.ProviderSet,
		repository.ProviderSet,
		service.ProviderSet,
		middleware.ProviderSet,
		handler.ProviderSet,
		server.ProviderSet,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil, nil
}
