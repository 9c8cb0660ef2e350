package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/eln-app/eln-api/internal/pkg/logger"
	"github.com/eln-app/eln-api/internal/pkg/metrics"

	"go.uber.org/zap"
)

const (
	// 计数器键前缀，格式: rate:{token}
	rateKeyPrefix = "rate:"
	// DefaultRateWindow is the length of one fixed counting window.
	DefaultRateWindow = time.Hour
)

func rateKey(token string) string {
	return rateKeyPrefix + token
}

// RateLimitDecision is the outcome of one Allow call.
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Count      int           // requests counted in the current window, this one included when allowed
	RetryAfter time.Duration // remaining window time; set only when rejected
}

// Remaining returns the requests still available in the current window.
func (d *RateLimitDecision) Remaining() int {
	if d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// RateLimitUsage is a read-only view of a token's current window.
type RateLimitUsage struct {
	Limit     int
	Count     int
	Remaining int
	ResetIn   time.Duration
}

// RateLimitService enforces the per-key request quota with a fixed-window
// counter kept in the shared cache.
//
// The window starts at the first counted request and lasts window; the counter
// then expires and the next request opens a new one. A caller can therefore
// land up to 2×limit requests across a window boundary.
type RateLimitService struct {
	cache   SharedCache
	window  time.Duration
	logger  *zap.Logger
	metrics *metrics.AuthMetrics
}

// NewRateLimitService creates a RateLimitService. window <= 0 uses DefaultRateWindow.
func NewRateLimitService(cache SharedCache, window time.Duration, logger *zap.Logger, m *metrics.AuthMetrics) *RateLimitService {
	if window <= 0 {
		window = DefaultRateWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitService{
		cache:   cache,
		window:  window,
		logger:  logger.Named("apikey.ratelimit"),
		metrics: m,
	}
}

// Window returns the configured window length.
func (s *RateLimitService) Window() time.Duration {
	return s.window
}

// Allow counts one request for token against limit. A rejected request does
// not advance the counter. Cache failures are returned wrapped in
// ErrAuthBackendUnavailable; the caller must not admit the request.
func (s *RateLimitService) Allow(ctx context.Context, token string, limit int) (*RateLimitDecision, error) {
	if limit < 1 {
		limit = 1
	}

	count, incremented, err := s.cache.IncrementWithinLimit(ctx, rateKey(token), int64(limit), s.window)
	if err != nil {
		return nil, ErrAuthBackendUnavailable.WithCause(fmt.Errorf("rate counter increment: %w", err))
	}

	decision := &RateLimitDecision{
		Allowed: incremented,
		Limit:   limit,
		Count:   int(count),
	}
	if incremented {
		return decision, nil
	}

	s.metrics.RateLimited()
	decision.RetryAfter = s.retryAfter(ctx, token)
	s.logger.Info("api key over quota",
		logger.TokenField(token),
		zap.Int("limit", limit),
		zap.Int64("count", count),
		zap.Duration("retry_after", decision.RetryAfter),
	)
	return decision, nil
}

// Usage reports the current window for token without counting a request.
func (s *RateLimitService) Usage(ctx context.Context, token string, limit int) (*RateLimitUsage, error) {
	if limit < 1 {
		limit = 1
	}
	usage := &RateLimitUsage{Limit: limit, Remaining: limit}

	raw, err := s.cache.Get(ctx, rateKey(token))
	if errors.Is(err, ErrCacheMiss) {
		return usage, nil
	}
	if err != nil {
		return nil, ErrAuthBackendUnavailable.WithCause(fmt.Errorf("rate counter get: %w", err))
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("parse rate counter %q: %w", raw, err)
	}
	usage.Count = count
	usage.Remaining = max(limit-count, 0)

	ttl, err := s.cache.TTL(ctx, rateKey(token))
	if err != nil {
		return nil, ErrAuthBackendUnavailable.WithCause(fmt.Errorf("rate counter ttl: %w", err))
	}
	usage.ResetIn = ttl
	return usage, nil
}

// retryAfter is the remaining window time. It is only a hint, so a TTL lookup
// failure falls back to the full window.
func (s *RateLimitService) retryAfter(ctx context.Context, token string) time.Duration {
	ttl, err := s.cache.TTL(ctx, rateKey(token))
	if err != nil {
		s.logger.Warn("read rate counter ttl", logger.TokenField(token), zap.Error(err))
		return s.window
	}
	if ttl <= 0 {
		return s.window
	}
	return ttl
}
