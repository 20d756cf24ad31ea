package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/findtime/findtime/pkg/findtime/apperror"
	"github.com/findtime/findtime/pkg/findtime/logging"
)

// Envelope is the result shape every event-facing endpoint returns.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   string      `json:"error,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

// OK writes a successful envelope.
func OK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// OKCount writes a successful envelope carrying an affected-row count.
func OKCount(c *gin.Context, message string, count int) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Count: &count})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err as a failed envelope.
func Fail(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	env := Envelope{Success: false, Message: err.Error()}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		env.Errors = appErr.Details
	}
	if kind == apperror.KindInternal {
		logging.Entry(c).WithError(err).Error("request failed")
	}
	env.Error = env.Message
	c.JSON(StatusFor(kind), env)
}

// BadRequest writes a validation failure for a malformed request body or parameter.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: msg, Error: msg})
}
