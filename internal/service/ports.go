package service

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by SharedCache.Get for an absent key.
var ErrCacheMiss = errors.New("cache miss")

// SharedCache is the process-external TTL cache shared by every gateway
// instance. Entries are expendable: every caller must stay correct when a get
// misses.
type SharedCache interface {
	// Get returns ErrCacheMiss when key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// IncrementWithinLimit atomically reads the counter at key (0 if absent)
	// and, when it is below limit, increments it, creating it with ttl. It
	// returns the counter value after the call and whether it was incremented.
	IncrementWithinLimit(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error)
	// TTL returns the remaining lifetime of key, 0 when absent or persistent.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// APIKeyRepository is the durable key registry.
type APIKeyRepository interface {
	// GetByToken returns ErrAPIKeyNotFound when no record has token.
	GetByToken(ctx context.Context, token string) (*APIKey, error)
	Create(ctx context.Context, key *APIKey) error
	SetActive(ctx context.Context, token string, active bool) error
	SetExpiry(ctx context.Context, token string, expiresAt *time.Time) error
	// TouchUsage advances last_used_at to usedAt (never backwards) and adds
	// one to total_requests.
	TouchUsage(ctx context.Context, token string, usedAt time.Time) error
}

// UsageLogRepository is the append-only request log sink.
type UsageLogRepository interface {
	Append(ctx context.Context, entry *UsageLogEntry) error
}

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time
