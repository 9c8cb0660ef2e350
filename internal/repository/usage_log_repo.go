package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eln-app/eln-api/internal/service"
)

const insertUsageLogQuery = `INSERT INTO api_key_usage_logs
	(id, token, endpoint, method, ip_address, user_agent, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

type usageLogRepository struct {
	db *sql.DB
}

// NewUsageLogRepository returns the PostgreSQL usage log sink. Rows are only
// ever inserted.
func NewUsageLogRepository(db *sql.DB) service.UsageLogRepository {
	return &usageLogRepository{db: db}
}

func (r *usageLogRepository) Append(ctx context.Context, e *service.UsageLogEntry) error {
	_, err := r.db.ExecContext(ctx, insertUsageLogQuery,
		e.ID, e.Token, e.Endpoint, e.Method, e.IP, e.UserAgent, e.Status, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}
	return nil
}
