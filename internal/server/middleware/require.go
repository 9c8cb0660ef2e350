package middleware

import (
	"net/http"

	"github.com/eln-app/eln-api/internal/pkg/response"
	"github.com/eln-app/eln-api/internal/service"

	"github.com/gin-gonic/gin"
)

// RequireAuthenticated rejects requests that no authenticator claimed.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetAuthSubjectFromContext(c); !ok {
			response.ErrorFrom(c, ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

// RequireAdmin admits JWT callers with the admin role only.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := GetAuthSubjectFromContext(c)
		if !ok {
			response.ErrorFrom(c, ErrUnauthenticated)
			return
		}
		if !subject.IsAdmin() {
			response.ErrorFrom(c, ErrAdminRequired)
			return
		}
		c.Next()
	}
}

// RequireAPIKeyPermission checks the key's capability flags: safe methods need
// can_read, everything else can_write. Requests authenticated otherwise pass.
func RequireAPIKeyPermission() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := GetAPIKeyFromContext(c)
		if !ok {
			c.Next()
			return
		}
		allowed := key.Permissions.CanWrite
		if isSafeMethod(c.Request.Method) {
			allowed = key.Permissions.CanRead
		}
		if !allowed {
			response.ErrorFrom(c, service.ErrAPIKeyForbidden)
			return
		}
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
