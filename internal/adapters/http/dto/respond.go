package dto

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

// MapDomainError picks the status and envelope for an error returned by the
// quote services. Unknown errors become a 500 with a generic message.
func MapDomainError(err error) (int, *ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	code, message := ErrorCodeInternal, "an internal error occurred"

	var details map[string]string

	switch {
	// An outage outranks whatever the failing dependency reported.
	case domain.IsUnavailable(err):
		code, message = ErrorCodeUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		code, message = ErrorCodeTimeout, "request timed out"
	case domain.IsNotFound(err):
		code, message = ErrorCodeNotFound, err.Error()
	case domain.IsConflict(err):
		code, message = ErrorCodeConflict, err.Error()
	case domain.IsForbidden(err):
		code, message = ErrorCodeForbidden, err.Error()
	case domain.IsValidation(err):
		code, message = ErrorCodeValidation, err.Error()

		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) && validationErr.Field != "" {
			details = map[string]string{validationErr.Field: validationErr.Message}
		}
	}

	return StatusForCode(code), newErrorResponse(code, message, details)
}

// GetTraceID returns the trace ID for the error envelope.
// The active span wins, then a "trace_id" context value, then the request ID header.
func GetTraceID(c *gin.Context) string {
	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}

	if v, ok := c.Get("trace_id"); ok {
		id, _ := v.(string)
		return id
	}

	return c.GetHeader("X-Request-ID")
}

// HandleError writes the error envelope for err.
// Internal errors are logged with full details.
func HandleError(c *gin.Context, err error) {
	status, errResp := MapDomainError(err)
	traced(c, errResp)

	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("internal error",
			"error", err.Error(),
			"trace_id", errResp.TraceID,
		)
	}

	c.JSON(status, errResp)
}

// HandleErrorCode writes an error envelope for an adapter-level failure
// that did not originate in the domain, e.g. a malformed query string.
func HandleErrorCode(c *gin.Context, code, message string) {
	c.JSON(StatusForCode(code), traced(c, newErrorResponse(code, message, nil)))
}

// HandleBindError writes a 400 for a failed BindAndValidate call,
// with field details when the failure came from struct validation.
func HandleBindError(c *gin.Context, err error) {
	if IsValidationError(err) {
		errResp := newErrorResponse(ErrorCodeValidation, "request validation failed", ValidationErrors(err))
		c.JSON(http.StatusBadRequest, traced(c, errResp))

		return
	}

	HandleErrorCode(c, ErrorCodeBadRequest, "malformed request body")
}

// AbortWithErrorCode aborts the request chain with a specific error code.
func AbortWithErrorCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(StatusForCode(code), traced(c, newErrorResponse(code, message, nil)))
}

func traced(c *gin.Context, resp *ErrorResponse) *ErrorResponse {
	resp.TraceID = GetTraceID(c)
	return resp
}
