package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eln-app/eln-api/internal/config"
	"github.com/eln-app/eln-api/internal/pkg/metrics"
	"github.com/eln-app/eln-api/internal/service"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const apiKeyStoreBreakerName = "api_key_store"

// breakerAPIKeyRepository guards key lookups with a circuit breaker so that a
// failing database is not hammered by every request while it recovers.
// Writes go straight through.
type breakerAPIKeyRepository struct {
	service.APIKeyRepository
	cb *gobreaker.CircuitBreaker[*service.APIKey]
}

// NewBreakerAPIKeyRepository wraps next. While the breaker is open, GetByToken
// fails fast with service.ErrAuthBackendUnavailable.
func NewBreakerAPIKeyRepository(next service.APIKeyRepository, cfg config.BreakerConfig, logger *zap.Logger, m *metrics.AuthMetrics) service.APIKeyRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("apikey.breaker")
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        apiKeyStoreBreakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// 未找到与调用方取消不代表存储故障
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, service.ErrAPIKeyNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			m.SetBreakerState(name, int(to))
		},
	}
	m.SetBreakerState(apiKeyStoreBreakerName, int(gobreaker.StateClosed))

	return &breakerAPIKeyRepository{
		APIKeyRepository: next,
		cb:               gobreaker.NewCircuitBreaker[*service.APIKey](settings),
	}
}

func (r *breakerAPIKeyRepository) GetByToken(ctx context.Context, token string) (*service.APIKey, error) {
	key, err := r.cb.Execute(func() (*service.APIKey, error) {
		return r.APIKeyRepository.GetByToken(ctx, token)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, service.ErrAuthBackendUnavailable.WithCause(err)
	}
	return key, err
}
