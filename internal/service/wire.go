package service

import (
	"time"

	"github.com/eln-app/eln-api/internal/config"
	"github.com/eln-app/eln-api/internal/pkg/metrics"

	"github.com/google/wire"
	"go.uber.org/zap"
)

// ProvideClock returns the wall clock.
func ProvideClock() Clock {
	return time.Now
}

// ProvideAPIKeyValidator creates the validator from configuration.
func ProvideAPIKeyValidator(cfg *config.Config, repo APIKeyRepository, cache SharedCache, logger *zap.Logger, m *metrics.AuthMetrics) *APIKeyValidator {
	return NewAPIKeyValidator(repo, cache, cfg.APIKey.ValidityTTL(), logger, m)
}

// ProvideRateLimitService creates the quota limiter from configuration.
func ProvideRateLimitService(cfg *config.Config, cache SharedCache, logger *zap.Logger, m *metrics.AuthMetrics) *RateLimitService {
	return NewRateLimitService(cache, cfg.APIKey.RateWindow(), logger, m)
}

// ProvideUsageRecorder creates the usage recorder from configuration.
func ProvideUsageRecorder(cfg *config.Config, logs UsageLogRepository, keys APIKeyRepository, now Clock, logger *zap.Logger, m *metrics.AuthMetrics) *UsageRecorder {
	return NewUsageRecorder(logs, keys, UsageRecorderOptions{
		Timeout:      cfg.APIKey.RecordTimeout(),
		MaxUserAgent: cfg.APIKey.UserAgentMaxLength,
		Clock:        now,
	}, logger, m)
}

// ProvideAPIKeyService creates the key administration service.
func ProvideAPIKeyService(cfg *config.Config, repo APIKeyRepository, validator *APIKeyValidator, limiter *RateLimitService, now Clock, logger *zap.Logger) *APIKeyService {
	return NewAPIKeyService(repo, validator, limiter, cfg.APIKey.TokenPrefix, now, logger)
}

// ProviderSet is the service layer providers.
var ProviderSet = wire.NewSet(
	ProvideClock,
	ProvideAPIKeyValidator,
	ProvideRateLimitService,
	ProvideUsageRecorder,
	ProvideAPIKeyService,
	NewAPIKeyGateway,
)
