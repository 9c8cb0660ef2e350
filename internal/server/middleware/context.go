// Package middleware holds the gin middleware of the HTTP server.
package middleware

import (
	"github.com/eln-app/eln-api/internal/service"

	"github.com/gin-gonic/gin"
)

type contextKey string

const (
	ContextKeyAPIKey      contextKey = "api_key"
	ContextKeyAuthSubject contextKey = "auth_subject"
	ContextKeyRateLimit   contextKey = "rate_limit"
	ContextKeyRequestID   contextKey = "request_id"
)

// Authentication methods recorded on AuthSubject.
const (
	AuthMethodAPIKey = "api_key"
	AuthMethodJWT    = "jwt"
)

// AuthSubject is the caller established by whichever authenticator claimed the
// request first.
type AuthSubject struct {
	UserID *int64 // nil = anonymous API key
	Method string
	Role   string // JWT callers only
}

// IsAdmin reports whether the subject carries the admin role.
func (s AuthSubject) IsAdmin() bool {
	return s.Method == AuthMethodJWT && s.Role == RoleAdmin
}

func setAPIKeyAuth(c *gin.Context, res *service.AuthResult) {
	c.Set(string(ContextKeyAPIKey), res.Key)
	c.Set(string(ContextKeyRateLimit), res.RateLimit)
	c.Set(string(ContextKeyAuthSubject), AuthSubject{
		UserID: res.Principal.UserID,
		Method: AuthMethodAPIKey,
	})
}

// GetAPIKeyFromContext returns the key validated by APIKeyAuth.
func GetAPIKeyFromContext(c *gin.Context) (*service.APIKey, bool) {
	v, ok := c.Get(string(ContextKeyAPIKey))
	if !ok {
		return nil, false
	}
	key, ok := v.(*service.APIKey)
	return key, ok && key != nil
}

// GetAuthSubjectFromContext returns the authenticated caller.
func GetAuthSubjectFromContext(c *gin.Context) (AuthSubject, bool) {
	v, ok := c.Get(string(ContextKeyAuthSubject))
	if !ok {
		return AuthSubject{}, false
	}
	subject, ok := v.(AuthSubject)
	return subject, ok
}

// GetRateLimitFromContext returns the quota decision of the current request.
func GetRateLimitFromContext(c *gin.Context) (*service.RateLimitDecision, bool) {
	v, ok := c.Get(string(ContextKeyRateLimit))
	if !ok {
		return nil, false
	}
	d, ok := v.(*service.RateLimitDecision)
	return d, ok && d != nil
}

// GetRequestIDFromContext returns the request id set by RequestID.
func GetRequestIDFromContext(c *gin.Context) string {
	return c.GetString(string(ContextKeyRequestID))
}
