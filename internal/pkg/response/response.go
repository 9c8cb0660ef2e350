// Package response writes the JSON envelopes returned by every handler.
package response

import (
	"net/http"

	infraerrors "github.com/eln-app/eln-api/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response is the standard envelope.
type Response struct {
	Code     int               `json:"code"`
	Reason   string            `json:"reason,omitempty"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Data     any               `json:"data,omitempty"`
}

// Success writes a 200 envelope carrying data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error writes an error envelope with an explicit status.
func Error(c *gin.Context, status int, reason, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Reason:  reason,
		Message: message,
	})
}

// ErrorFrom writes the envelope for err. Errors without an ApplicationError in
// their chain are reported as a generic internal error so that internal details
// never leak to the caller.
func ErrorFrom(c *gin.Context, err error) {
	appErr := infraerrors.FromError(err)
	if appErr.Reason == infraerrors.UnknownReason && appErr.Code == http.StatusInternalServerError {
		Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		return
	}
	c.AbortWithStatusJSON(appErr.Code, Response{
		Code:     appErr.Code,
		Reason:   appErr.Reason,
		Message:  appErr.Message,
		Metadata: appErr.Metadata,
	})
}

// BadRequest writes a 400 envelope.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message)
}
