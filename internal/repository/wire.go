package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eln-app/eln-api/internal/config"
	"github.com/eln-app/eln-api/internal/pkg/metrics"
	"github.com/eln-app/eln-api/internal/service"

	"github.com/google/wire"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewDB opens the PostgreSQL pool and verifies connectivity.
func NewDB(cfg *config.Config) (*sql.DB, func(), error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}

// NewRedis creates the Redis client. Connectivity is checked lazily by the
// health endpoint so that the memory driver needs no Redis at all.
func NewRedis(cfg *config.Config) (*redis.Client, func()) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  time.Duration(cfg.Redis.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.Redis.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Redis.WriteTimeoutSeconds) * time.Second,
	})
	return rdb, func() { _ = rdb.Close() }
}

// ProvideSharedCache selects the cache backend named by cache.driver.
func ProvideSharedCache(cfg *config.Config, rdb *redis.Client) service.SharedCache {
	if cfg.Cache.Driver == config.CacheDriverMemory {
		return NewMemorySharedCache(nil)
	}
	return NewRedisSharedCache(rdb)
}

// ProvideAPIKeyRepository returns the breaker-guarded key store.
func ProvideAPIKeyRepository(cfg *config.Config, db *sql.DB, logger *zap.Logger, m *metrics.AuthMetrics) service.APIKeyRepository {
	return NewBreakerAPIKeyRepository(NewAPIKeyRepository(db), cfg.Breaker, logger, m)
}

// ProviderSet is the repository layer providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	ProvideSharedCache,
	ProvideAPIKeyRepository,
	NewUsageLogRepository,
)
