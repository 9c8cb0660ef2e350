//go:build unit

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithCauseKeepsIdentity(t *testing.T) {
	sentinel := ServiceUnavailable("BACKEND_DOWN", "backend unavailable")
	cause := errors.New("dial tcp: connection refused")

	err := fmt.Errorf("resolve: %w", sentinel.WithCause(cause))

	require.True(t, errors.Is(err, sentinel))
	require.True(t, errors.Is(err, cause))
	require.Equal(t, http.StatusServiceUnavailable, Code(err))
	require.Equal(t, "BACKEND_DOWN", Reason(err))
	require.Equal(t, "backend unavailable", Message(err))
	require.Nil(t, sentinel.Unwrap(), "sentinel must not be mutated")
}

func TestIsDistinguishesReasons(t *testing.T) {
	a := Unauthorized("A", "a")
	b := Unauthorized("B", "b")
	require.False(t, errors.Is(a, b))
	require.True(t, errors.Is(a, Unauthorized("A", "other message")))
}

func TestFromErrorPlainError(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, appErr.Code)
	require.Equal(t, UnknownReason, appErr.Reason)
	require.Equal(t, "boom", appErr.Message)
	require.Equal(t, "", Message(errors.New("boom")))
	require.Equal(t, http.StatusOK, Code(nil))
}

func TestWithMetadataCopies(t *testing.T) {
	base := TooManyRequests("LIMIT", "slow down")
	withMD := base.WithMetadata(map[string]string{"retry_after": "30"})
	require.Nil(t, base.Metadata)
	require.Equal(t, "30", withMD.Metadata["retry_after"])
	require.True(t, errors.Is(withMD, base))
}
