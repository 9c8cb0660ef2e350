//go:build unit

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newAdminRouter(m *JWTAuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", m.Handler(), RequireAdmin(), func(c *gin.Context) {
		subject, _ := GetAuthSubjectFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": *subject.UserID, "role": subject.Role})
	})
	r.GET("/any", m.Handler(), RequireAuthenticated(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func call(r http.Handler, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth_AdminToken(t *testing.T) {
	m := NewJWTAuthMiddleware(testConfig())
	token, err := m.IssueToken(11, RoleAdmin, time.Hour)
	require.NoError(t, err)

	w := call(newAdminRouter(m), "/admin", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"user_id":11,"role":"admin"}`, w.Body.String())
}

func TestJWTAuth_Rejections(t *testing.T) {
	m := NewJWTAuthMiddleware(testConfig())
	userToken, err := m.IssueToken(12, RoleUser, time.Hour)
	require.NoError(t, err)
	expired, err := m.IssueToken(12, RoleAdmin, -time.Minute)
	require.NoError(t, err)

	other := testConfig()
	other.JWT.Secret = "another-secret"
	forged, err := NewJWTAuthMiddleware(other).IssueToken(12, RoleAdmin, time.Hour)
	require.NoError(t, err)

	otherIssuer := testConfig()
	otherIssuer.JWT.Issuer = "someone-else"
	wrongIssuer, err := NewJWTAuthMiddleware(otherIssuer).IssueToken(12, RoleAdmin, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantReason string
	}{
		{"no header", "", http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "TOKEN_INVALID"},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized, "TOKEN_INVALID"},
		{"wrong issuer", "Bearer " + wrongIssuer, http.StatusUnauthorized, "TOKEN_INVALID"},
		{"not admin", "Bearer " + userToken, http.StatusForbidden, "ADMIN_REQUIRED"},
	}
	r := newAdminRouter(m)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(r, "/admin", tt.header)
			require.Equal(t, tt.wantStatus, w.Code)
			require.Equal(t, tt.wantReason, decodeEnvelope(t, w).Reason)
		})
	}
}

func TestJWTAuth_EmptySecretRejectsTokens(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = ""
	m := NewJWTAuthMiddleware(cfg)

	w := call(newAdminRouter(m), "/any", "Bearer a.b.c")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "TOKEN_INVALID", decodeEnvelope(t, w).Reason)
}

func TestJWTAuth_SkipsWhenSubjectSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewJWTAuthMiddleware(testConfig())
	uid := int64(5)

	r := gin.New()
	r.GET("/any",
		func(c *gin.Context) {
			c.Set(string(ContextKeyAuthSubject), AuthSubject{UserID: &uid, Method: AuthMethodAPIKey})
		},
		m.Handler(),
		RequireAuthenticated(),
		func(c *gin.Context) {
			subject, _ := GetAuthSubjectFromContext(c)
			c.String(http.StatusOK, subject.Method)
		},
	)

	w := call(r, "/any", "Bearer garbage")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, AuthMethodAPIKey, w.Body.String())
}

func TestBearerToken(t *testing.T) {
	tok, err := bearerToken("Bearer abc.def")
	require.NoError(t, err)
	require.Equal(t, "abc.def", tok)

	tok, err = bearerToken("  bearer   xyz  ")
	require.NoError(t, err)
	require.Equal(t, "xyz", tok)

	_, err = bearerToken("")
	require.ErrorIs(t, err, errMissingBearerToken)

	_, err = bearerToken("Bearer ")
	require.Error(t, err)
	require.NotErrorIs(t, err, errMissingBearerToken)
}
