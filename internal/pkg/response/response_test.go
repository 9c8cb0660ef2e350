//go:build unit

package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	infraerrors "github.com/eln-app/eln-api/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func render(fn func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestSuccess(t *testing.T) {
	w, resp := render(func(c *gin.Context) { Success(c, gin.H{"id": 1}) })
	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, resp.Code)
	require.Equal(t, "success", resp.Message)
	require.Equal(t, map[string]any{"id": float64(1)}, resp.Data)
}

func TestErrorFrom(t *testing.T) {
	notFound := infraerrors.NotFound("THING_NOT_FOUND", "thing not found")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
		wantMsg    string
	}{
		{"application error", notFound, http.StatusNotFound, "THING_NOT_FOUND", "thing not found"},
		{"wrapped", fmt.Errorf("load: %w", notFound.WithCause(errors.New("sql: no rows"))), http.StatusNotFound, "THING_NOT_FOUND", "thing not found"},
		{"plain error", errors.New("pq: password authentication failed"), http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := render(func(c *gin.Context) { ErrorFrom(c, tt.err) })
			require.Equal(t, tt.wantStatus, w.Code)
			require.Equal(t, tt.wantStatus, resp.Code)
			require.Equal(t, tt.wantReason, resp.Reason)
			require.Equal(t, tt.wantMsg, resp.Message)
			require.NotContains(t, w.Body.String(), "sql: no rows")
			require.NotContains(t, w.Body.String(), "password")
		})
	}
}

func TestErrorFrom_Metadata(t *testing.T) {
	err := infraerrors.TooManyRequests("SLOW_DOWN", "slow down").WithMetadata(map[string]string{"retry_after": "30"})
	w, resp := render(func(c *gin.Context) { ErrorFrom(c, err) })
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "30", resp.Metadata["retry_after"])
}

func TestBadRequestAborts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	BadRequest(c, "bad input")
	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusBadRequest, w.Code)
}
