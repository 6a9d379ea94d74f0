package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"paidping-backend/internal/common/errors"
	"paidping-backend/internal/common/logger"
)

const requestIDKey = "request_id"

// ErrorBody is the JSON shape every failed request gets. Internal
// details (stack traces, store errors) never reach it.
type ErrorBody struct {
	Code         errors.ErrorCode `json:"code"`
	Reason       string           `json:"reason,omitempty"`
	RetryAfterMs int64            `json:"retryAfterMs,omitempty"`
	RequestID    string           `json:"requestId,omitempty"`
}

// RequestID attaches a correlation id to the request context and the
// response headers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// GetRequestID returns the correlation id set by RequestID.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// ErrorHandler recovers panics and translates errors attached via
// AbortWithError into structured JSON responses.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("panic", fmt.Sprintf("%v", recovered)).
			Str("stack", string(debug.Stack())).
			Msg("panic recovered")

		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{
			Code:      errors.ErrCodeInternal,
			Reason:    "internal error",
			RequestID: GetRequestID(c),
		})
	})
}

// AbortWithError writes the structured error response for err and stops
// the handler chain. Non-AppError values are treated as internal.
func AbortWithError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.NewInternal(err)
	}

	logAppError(c, appErr)

	body := ErrorBody{
		Code:      appErr.Code,
		Reason:    appErr.Reason,
		RequestID: GetRequestID(c),
	}
	if appErr.IsInternal() {
		// Never leak an internal reason.
		body.Reason = "internal error"
	}
	if appErr.Code == errors.ErrCodeRateLimited {
		body.RetryAfterMs = appErr.RetryAfter.Milliseconds()
	}

	c.AbortWithStatusJSON(httpStatus(appErr), body)
}

func httpStatus(appErr *errors.AppError) int {
	switch {
	case appErr.IsValidation():
		return http.StatusBadRequest
	case appErr.IsNotFound():
		return http.StatusNotFound
	case appErr.IsConflict():
		return http.StatusConflict
	}
	switch appErr.Code {
	case errors.ErrCodeUnauthorized, errors.ErrCodeNonceExpired:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func logAppError(c *gin.Context, appErr *errors.AppError) {
	event := logger.Info()
	if appErr.IsInternal() {
		event = logger.Error().Err(appErr.Cause)
	}
	event.
		Str("request_id", GetRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("reason", appErr.Reason).
		Msg("request failed")
}
