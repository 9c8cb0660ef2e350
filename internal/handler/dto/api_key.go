package dto

import (
	"time"

	"github.com/eln-app/eln-api/internal/pkg/logger"
	"github.com/eln-app/eln-api/internal/service"
)

// APIKeySummary is the caller-facing view of a key. The token itself is only
// returned once, at creation.
type APIKeySummary struct {
	ID            int64                     `json:"id"`
	Name          string                    `json:"name"`
	TokenHint     string                    `json:"token_hint"`
	UserID        *int64                    `json:"user_id"`
	IsActive      bool                      `json:"is_active"`
	Permissions   service.APIKeyPermissions `json:"permissions"`
	RateLimit     int                       `json:"rate_limit"`
	ExpiresAt     *time.Time                `json:"expires_at"`
	LastUsedAt    *time.Time                `json:"last_used_at"`
	TotalRequests int64                     `json:"total_requests"`
	CreatedAt     time.Time                 `json:"created_at"`
}

func APIKeySummaryFromService(k *service.APIKey) *APIKeySummary {
	if k == nil {
		return nil
	}
	return &APIKeySummary{
		ID:            k.ID,
		Name:          k.Name,
		TokenHint:     logger.MaskToken(k.Token),
		UserID:        k.UserID,
		IsActive:      k.Active,
		Permissions:   k.Permissions,
		RateLimit:     k.RateLimit,
		ExpiresAt:     k.ExpiresAt,
		LastUsedAt:    k.LastUsedAt,
		TotalRequests: k.TotalRequests,
		CreatedAt:     k.CreatedAt,
	}
}

// CreatedAPIKey carries the plaintext token exactly once.
type CreatedAPIKey struct {
	APIKeySummary
	Token string `json:"token"`
}

// Me describes the authenticated caller.
type Me struct {
	AuthMethod string         `json:"auth_method"`
	UserID     *int64         `json:"user_id"`
	Anonymous  bool           `json:"anonymous"`
	Role       string         `json:"role,omitempty"`
	APIKey     *APIKeySummary `json:"api_key,omitempty"`
}

// QuotaWindow is the current fixed-window usage.
type QuotaWindow struct {
	Limit          int `json:"limit"`
	Used           int `json:"used"`
	Remaining      int `json:"remaining"`
	ResetInSeconds int `json:"reset_in_seconds"`
}

func QuotaWindowFromService(u *service.RateLimitUsage) QuotaWindow {
	return QuotaWindow{
		Limit:          u.Limit,
		Used:           u.Count,
		Remaining:      u.Remaining,
		ResetInSeconds: int((u.ResetIn + time.Second - 1) / time.Second),
	}
}

// APIKeyUsage is the /usage payload.
type APIKeyUsage struct {
	TotalRequests int64       `json:"total_requests"`
	LastUsedAt    *time.Time  `json:"last_used_at"`
	Window        QuotaWindow `json:"window"`
}
