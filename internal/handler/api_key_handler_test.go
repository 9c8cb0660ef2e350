//go:build unit

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eln-app/eln-api/internal/config"
	"github.com/eln-app/eln-api/internal/handler/dto"
	"github.com/eln-app/eln-api/internal/repository"
	middleware2 "github.com/eln-app/eln-api/internal/server/middleware"
	"github.com/eln-app/eln-api/internal/service"
	"github.com/eln-app/eln-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newSelfServiceRouter(t *testing.T, keys ...*service.APIKey) (*gin.Engine, *testutil.Stack) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := testutil.NewStack(repository.NewMemorySharedCache(nil), keys...)
	cfg := &config.Config{APIKey: config.APIKeyConfig{Header: "X-API-Key"}}
	auth := middleware2.NewAPIKeyAuthMiddleware(st.Gateway, cfg, nil)
	h := NewAPIKeyHandler(st.Service)

	r := gin.New()
	r.GET("/me", auth.Handler(service.AuthModeOptional), middleware2.RequireAuthenticated(), h.Me)
	r.GET("/usage", auth.Handler(service.AuthModeRequired), h.Usage)
	return r, st
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("X-API-Key", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Code int `json:"code"`
		Data T   `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Zero(t, env.Code)
	return env.Data
}

func TestAPIKeyHandler_Me(t *testing.T) {
	r, _ := newSelfServiceRouter(t, testutil.ActiveKey("eln_me_handler_key", 10, 21))

	w := get(r, "/me", "eln_me_handler_key")
	require.Equal(t, http.StatusOK, w.Code)
	me := decodeData[dto.Me](t, w)
	require.Equal(t, middleware2.AuthMethodAPIKey, me.AuthMethod)
	require.Equal(t, int64(21), *me.UserID)
	require.False(t, me.Anonymous)
	require.NotNil(t, me.APIKey)
	require.Equal(t, "eln_me_h***", me.APIKey.TokenHint)
	require.NotContains(t, w.Body.String(), "eln_me_handler_key")

	w = get(r, "/me", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIKeyHandler_MeAnonymousKey(t *testing.T) {
	key := testutil.ActiveKey("eln_anonymous_key", 10, 0)
	key.UserID = nil
	r, _ := newSelfServiceRouter(t, key)

	w := get(r, "/me", "eln_anonymous_key")
	require.Equal(t, http.StatusOK, w.Code)
	me := decodeData[dto.Me](t, w)
	require.True(t, me.Anonymous)
	require.Nil(t, me.UserID)
}

func TestAPIKeyHandler_Usage(t *testing.T) {
	r, _ := newSelfServiceRouter(t, testutil.ActiveKey("eln_usage_key", 5, 3))

	require.Equal(t, http.StatusOK, get(r, "/me", "eln_usage_key").Code)

	w := get(r, "/usage", "eln_usage_key")
	require.Equal(t, http.StatusOK, w.Code)
	usage := decodeData[dto.APIKeyUsage](t, w)
	require.Equal(t, int64(2), usage.TotalRequests)
	require.NotNil(t, usage.LastUsedAt)
	require.Equal(t, 5, usage.Window.Limit)
	require.Equal(t, 2, usage.Window.Used)
	require.Equal(t, 3, usage.Window.Remaining)
	require.InDelta(t, 3600, usage.Window.ResetInSeconds, 1)

	w = get(r, "/usage", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
