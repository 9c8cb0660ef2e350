package service

import (
	"fmt"
	"strconv"
	"time"

	infraerrors "github.com/eln-app/eln-api/internal/pkg/errors"
)

var (
	// ErrAPIKeyNotFound is returned by APIKeyRepository lookups.
	ErrAPIKeyNotFound = infraerrors.NotFound("API_KEY_NOT_FOUND", "api key not found")

	// ErrAPIKeyInvalid covers unknown, inactive and expired keys alike. Callers
	// never learn which one applied.
	ErrAPIKeyInvalid = infraerrors.Unauthorized("API_KEY_INVALID", "invalid or expired API key")

	// ErrAPIKeyRequired is returned in required mode when no key was sent.
	ErrAPIKeyRequired = infraerrors.Unauthorized("API_KEY_REQUIRED", "API key required")

	// ErrAPIKeyRateLimited is matched by every *RateLimitExceededError.
	ErrAPIKeyRateLimited = infraerrors.TooManyRequests("API_KEY_RATE_LIMITED", "API key request quota exceeded")

	// ErrAPIKeyForbidden is returned when the key lacks the needed permission.
	ErrAPIKeyForbidden = infraerrors.Forbidden("API_KEY_FORBIDDEN", "API key lacks the required permission")

	// ErrAuthBackendUnavailable wraps key store and cache failures met while
	// deciding admission. It is never reported as an invalid credential.
	ErrAuthBackendUnavailable = infraerrors.ServiceUnavailable("AUTH_BACKEND_UNAVAILABLE", "authentication backend unavailable")
)

// RateLimitExceededError is returned for a throttled request.
type RateLimitExceededError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("api key rate limit of %d requests exceeded, retry after %s", e.Limit, e.RetryAfter)
}

// Is makes errors.Is(err, ErrAPIKeyRateLimited) hold.
func (e *RateLimitExceededError) Is(target error) bool {
	return ErrAPIKeyRateLimited.Is(target)
}

// Unwrap exposes the application error so response.ErrorFrom can render it.
func (e *RateLimitExceededError) Unwrap() error {
	return ErrAPIKeyRateLimited.WithMetadata(map[string]string{
		"retry_after": strconv.Itoa(e.RetryAfterSeconds()),
	})
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least one.
func (e *RateLimitExceededError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
