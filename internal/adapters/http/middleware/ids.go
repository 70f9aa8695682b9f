// Package middleware provides HTTP middleware components for the Gin server.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

const (
	// HeaderRequestID identifies a single HTTP exchange.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID follows one quote operation across services, so a
	// sync triggered by a client shares it with the remote fetch it causes.
	HeaderCorrelationID = "X-Correlation-ID"

	// maxIDLength bounds inbound IDs before they reach logs and the remote.
	maxIDLength = 128
)

type idKey int

const (
	requestIDKey idKey = iota
	correlationIDKey
)

// ginKey returns the gin.Context key for an ID kind.
func (k idKey) ginKey() string {
	if k == requestIDKey {
		return "request_id"
	}

	return "correlation_id"
}

// tracedID describes one propagated identifier.
type tracedID struct {
	header string
	key    idKey
	logged func(ctx context.Context, id string) context.Context
}

// RequestID takes X-Request-ID from the caller or mints a UUID, echoes it on
// the response, and puts it on the request context and its logger.
func RequestID() gin.HandlerFunc {
	return tracedID{header: HeaderRequestID, key: requestIDKey, logged: logging.WithRequestID}.middleware()
}

// CorrelationID keeps an upstream X-Correlation-ID or starts a new one.
func CorrelationID() gin.HandlerFunc {
	return tracedID{header: HeaderCorrelationID, key: correlationIDKey, logged: logging.WithCorrelationID}.middleware()
}

func (t tracedID) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(t.header)
		if !validID(id) {
			id = uuid.NewString()
		}

		c.Set(t.key.ginKey(), id)
		c.Header(t.header, id)

		ctx := context.WithValue(t.logged(c.Request.Context(), id), t.key, id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// validID accepts non-empty printable ASCII up to maxIDLength.
func validID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}

	for i := range len(id) {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}

	return true
}

// GetRequestID returns the request ID set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey.ginKey())
}

// GetCorrelationID returns the correlation ID set by CorrelationID, or "".
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey.ginKey())
}

// RequestIDFromContext is used by the remote quote client to forward the ID.
func RequestIDFromContext(ctx context.Context) string {
	return idFrom(ctx, requestIDKey)
}

// CorrelationIDFromContext is the correlation counterpart of RequestIDFromContext.
func CorrelationIDFromContext(ctx context.Context) string {
	return idFrom(ctx, correlationIDKey)
}

// ContextWithRequestID attaches a request ID to a context that did not come
// through RequestID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextWithCorrelationID attaches a correlation ID outside of HTTP.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func idFrom(ctx context.Context, key idKey) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(key).(string)

	return id
}
