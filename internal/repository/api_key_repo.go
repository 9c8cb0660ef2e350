package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	infraerrors "github.com/eln-app/eln-api/internal/pkg/errors"
	"github.com/eln-app/eln-api/internal/service"

	"github.com/lib/pq"
)

// ErrAPIKeyTokenConflict is returned by Create when the token already exists.
var ErrAPIKeyTokenConflict = infraerrors.New(409, "API_KEY_TOKEN_CONFLICT", "api key token already exists")

const uniqueViolation = "23505"

const (
	apiKeyColumns = `id, token, name, user_id, is_active, can_read, can_write, rate_limit,
		expires_at, last_used_at, total_requests, created_at, updated_at`

	getAPIKeyByTokenQuery = `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE token = $1`

	insertAPIKeyQuery = `INSERT INTO api_keys
		(token, name, user_id, is_active, can_read, can_write, rate_limit, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	setAPIKeyActiveQuery = `UPDATE api_keys SET is_active = $2, updated_at = NOW() WHERE token = $1`

	setAPIKeyExpiryQuery = `UPDATE api_keys SET expires_at = $2, updated_at = NOW() WHERE token = $1`

	// last_used_at 只前进不后退；total_requests 原子自增
	touchAPIKeyUsageQuery = `UPDATE api_keys
		SET last_used_at = GREATEST(COALESCE(last_used_at, $2), $2),
		    total_requests = total_requests + 1
		WHERE token = $1`
)

type apiKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository returns the PostgreSQL key store.
func NewAPIKeyRepository(db *sql.DB) service.APIKeyRepository {
	return &apiKeyRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner) (*service.APIKey, error) {
	var (
		k          service.APIKey
		userID     sql.NullInt64
		expiresAt  sql.NullTime
		lastUsedAt sql.NullTime
	)
	if err := row.Scan(
		&k.ID, &k.Token, &k.Name, &userID, &k.Active,
		&k.Permissions.CanRead, &k.Permissions.CanWrite, &k.RateLimit,
		&expiresAt, &lastUsedAt, &k.TotalRequests, &k.CreatedAt, &k.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if userID.Valid {
		v := userID.Int64
		k.UserID = &v
	}
	if expiresAt.Valid {
		v := expiresAt.Time
		k.ExpiresAt = &v
	}
	if lastUsedAt.Valid {
		v := lastUsedAt.Time
		k.LastUsedAt = &v
	}
	return &k, nil
}

func (r *apiKeyRepository) GetByToken(ctx context.Context, token string) (*service.APIKey, error) {
	k, err := scanAPIKey(r.db.QueryRowContext(ctx, getAPIKeyByTokenQuery, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query api key: %w", err)
	}
	return k, nil
}

func (r *apiKeyRepository) Create(ctx context.Context, key *service.APIKey) error {
	now := time.Now()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = now
	}
	if key.UpdatedAt.IsZero() {
		key.UpdatedAt = key.CreatedAt
	}
	err := r.db.QueryRowContext(ctx, insertAPIKeyQuery,
		key.Token, key.Name, nullInt64(key.UserID), key.Active,
		key.Permissions.CanRead, key.Permissions.CanWrite, key.RateLimit,
		nullTime(key.ExpiresAt), key.CreatedAt, key.UpdatedAt,
	).Scan(&key.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrAPIKeyTokenConflict.WithCause(err)
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (r *apiKeyRepository) SetActive(ctx context.Context, token string, active bool) error {
	return r.execOne(ctx, "set api key active", setAPIKeyActiveQuery, token, active)
}

func (r *apiKeyRepository) SetExpiry(ctx context.Context, token string, expiresAt *time.Time) error {
	return r.execOne(ctx, "set api key expiry", setAPIKeyExpiryQuery, token, nullTime(expiresAt))
}

func (r *apiKeyRepository) TouchUsage(ctx context.Context, token string, usedAt time.Time) error {
	return r.execOne(ctx, "touch api key usage", touchAPIKeyUsageQuery, token, usedAt)
}

// execOne runs an update addressed by token and maps zero affected rows to
// ErrAPIKeyNotFound.
func (r *apiKeyRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return service.ErrAPIKeyNotFound
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
