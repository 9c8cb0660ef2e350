package service

import "time"

// APIKeyPermissions are the capability flags granted to a key.
type APIKeyPermissions struct {
	CanRead  bool `json:"can_read"`
	CanWrite bool `json:"can_write"`
}

// APIKey is the durable key record. Token is the immutable primary lookup key.
type APIKey struct {
	ID            int64
	Token         string
	Name          string
	UserID        *int64 // nil = anonymous caller
	Active        bool
	Permissions   APIKeyPermissions
	RateLimit     int        // requests per window, >= 1
	ExpiresAt     *time.Time // nil = never expires
	LastUsedAt    *time.Time
	TotalRequests int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsExpiredAt reports whether the key is past its expiry at now.
func (k *APIKey) IsExpiredAt(now time.Time) bool {
	if k.ExpiresAt == nil {
		return false
	}
	return !k.ExpiresAt.After(now)
}

// IsUsableAt 是否可用：启用且未过期
// Evaluated on every request, never cached.
func (k *APIKey) IsUsableAt(now time.Time) bool {
	return k.Active && !k.IsExpiredAt(now)
}

// EffectiveRateLimit returns RateLimit clamped to the minimum of one request.
func (k *APIKey) EffectiveRateLimit() int {
	if k.RateLimit < 1 {
		return 1
	}
	return k.RateLimit
}

// Principal is the caller identity behind a validated key.
type Principal struct {
	UserID *int64
}

// IsAnonymous reports whether the key has no owning identity.
func (p Principal) IsAnonymous() bool {
	return p.UserID == nil
}

// PrincipalOf returns the principal owning k.
func PrincipalOf(k *APIKey) Principal {
	if k == nil || k.UserID == nil {
		return Principal{}
	}
	uid := *k.UserID
	return Principal{UserID: &uid}
}
