package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eln-app/eln-api/internal/pkg/logger"
	"github.com/eln-app/eln-api/internal/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// 凭证缓存键前缀，格式: validity:{token}
	validityKeyPrefix = "validity:"
	// DefaultValidityTTL bounds how stale a cached answer can be.
	DefaultValidityTTL = 300 * time.Second
	// lookupTimeout bounds a shared store lookup, which outlives the caller
	// that started it.
	lookupTimeout = 5 * time.Second
)

func validityKey(token string) string {
	return validityKeyPrefix + token
}

// cachedValidity is the cache wire format. Found=false is the negative
// sentinel.
type cachedValidity struct {
	Found bool            `json:"found"`
	Key   *apiKeySnapshot `json:"key,omitempty"`
}

type apiKeySnapshot struct {
	ID            int64             `json:"id"`
	Token         string            `json:"token"`
	Name          string            `json:"name"`
	UserID        *int64            `json:"user_id,omitempty"`
	Active        bool              `json:"active"`
	Permissions   APIKeyPermissions `json:"permissions"`
	RateLimit     int               `json:"rate_limit"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	LastUsedAt    *time.Time        `json:"last_used_at,omitempty"`
	TotalRequests int64             `json:"total_requests"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func snapshotOf(k *APIKey) *apiKeySnapshot {
	return &apiKeySnapshot{
		ID:            k.ID,
		Token:         k.Token,
		Name:          k.Name,
		UserID:        k.UserID,
		Active:        k.Active,
		Permissions:   k.Permissions,
		RateLimit:     k.RateLimit,
		ExpiresAt:     k.ExpiresAt,
		LastUsedAt:    k.LastUsedAt,
		TotalRequests: k.TotalRequests,
		CreatedAt:     k.CreatedAt,
		UpdatedAt:     k.UpdatedAt,
	}
}

func (s *apiKeySnapshot) toAPIKey() *APIKey {
	return &APIKey{
		ID:            s.ID,
		Token:         s.Token,
		Name:          s.Name,
		UserID:        s.UserID,
		Active:        s.Active,
		Permissions:   s.Permissions,
		RateLimit:     s.RateLimit,
		ExpiresAt:     s.ExpiresAt,
		LastUsedAt:    s.LastUsedAt,
		TotalRequests: s.TotalRequests,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func cloneAPIKey(k *APIKey) *APIKey {
	if k == nil {
		return nil
	}
	cp := *k
	if k.UserID != nil {
		v := *k.UserID
		cp.UserID = &v
	}
	if k.ExpiresAt != nil {
		v := *k.ExpiresAt
		cp.ExpiresAt = &v
	}
	if k.LastUsedAt != nil {
		v := *k.LastUsedAt
		cp.LastUsedAt = &v
	}
	return &cp
}

// APIKeyValidator resolves tokens to key records through the validity cache.
//
// A cached answer, positive or negative, is served for up to ttl without
// touching the key store, so an administrator change becomes visible to cached
// callers only after the entry expires or Invalidate is called. Negative
// entries exist to cap the store load a flood of garbage tokens can cause.
type APIKeyValidator struct {
	repo    APIKeyRepository
	cache   SharedCache
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
	metrics *metrics.AuthMetrics
}

// NewAPIKeyValidator creates an APIKeyValidator. ttl <= 0 uses DefaultValidityTTL.
func NewAPIKeyValidator(repo APIKeyRepository, cache SharedCache, ttl time.Duration, logger *zap.Logger, m *metrics.AuthMetrics) *APIKeyValidator {
	if ttl <= 0 {
		ttl = DefaultValidityTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIKeyValidator{
		repo:    repo,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.Named("apikey.validator"),
		metrics: m,
	}
}

// Resolve returns the key record for token, or (nil, nil) when the token is
// unknown. Store and cache failures are returned wrapped in
// ErrAuthBackendUnavailable; when ctx itself ends, ctx.Err() is returned
// unwrapped. Resolve does not judge validity.
func (v *APIKeyValidator) Resolve(ctx context.Context, token string) (*APIKey, error) {
	key, hit, err := v.lookupCache(ctx, token)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, ErrAuthBackendUnavailable.WithCause(fmt.Errorf("validity cache get: %w", err))
	}
	if hit {
		return key, nil
	}

	// 同一 token 的并发未命中合并为一次存储查询
	// The shared lookup is detached from every caller; each caller only
	// stops waiting when its own context ends.
	ch := v.group.DoChan(token, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return v.load(loadCtx, token)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		loaded, _ := res.Val.(*APIKey)
		return cloneAPIKey(loaded), nil
	}
}

// Invalidate drops the cached answer for token so that the next Resolve reads
// the key store. Administration code calls it after changing is_active or
// expires_at.
func (v *APIKeyValidator) Invalidate(ctx context.Context, token string) error {
	if err := v.cache.Delete(ctx, validityKey(token)); err != nil {
		return fmt.Errorf("invalidate validity cache: %w", err)
	}
	return nil
}

// lookupCache reports hit=true for both positive and negative entries; key is
// nil for a negative one. Undecodable entries count as a miss.
func (v *APIKeyValidator) lookupCache(ctx context.Context, token string) (*APIKey, bool, error) {
	raw, err := v.cache.Get(ctx, validityKey(token))
	if errors.Is(err, ErrCacheMiss) {
		v.metrics.CacheLookup(metrics.CacheMiss)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entry cachedValidity
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || (entry.Found && entry.Key == nil) {
		v.metrics.CacheLookup(metrics.CacheCorrupt)
		v.logger.Warn("discarding undecodable validity cache entry", logger.TokenField(token), zap.Error(err))
		return nil, false, nil
	}
	if !entry.Found {
		v.metrics.CacheLookup(metrics.CacheHitNegative)
		return nil, true, nil
	}
	v.metrics.CacheLookup(metrics.CacheHitPositive)
	return entry.Key.toAPIKey(), true, nil
}

func (v *APIKeyValidator) load(ctx context.Context, token string) (*APIKey, error) {
	key, err := v.repo.GetByToken(ctx, token)
	if errors.Is(err, ErrAPIKeyNotFound) {
		v.store(ctx, token, cachedValidity{Found: false})
		return nil, nil
	}
	if err != nil {
		return nil, ErrAuthBackendUnavailable.WithCause(fmt.Errorf("key store lookup: %w", err))
	}
	v.store(ctx, token, cachedValidity{Found: true, Key: snapshotOf(key)})
	return key, nil
}

// store writes a cache entry. A failed write only costs a later store read,
// so it is logged and not returned.
func (v *APIKeyValidator) store(ctx context.Context, token string, entry cachedValidity) {
	payload, err := json.Marshal(entry)
	if err != nil {
		v.logger.Warn("encode validity cache entry", logger.TokenField(token), zap.Error(err))
		return
	}
	if err := v.cache.Set(ctx, validityKey(token), string(payload), v.ttl); err != nil {
		v.logger.Warn("write validity cache entry", logger.TokenField(token), zap.Bool("found", entry.Found), zap.Error(err))
	}
}
