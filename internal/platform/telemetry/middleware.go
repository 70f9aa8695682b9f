package telemetry

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/jsamuelsen/quote-sync/telemetry"

	// HeaderTraceID lets API clients quote a trace when reporting a failed import or sync.
	HeaderTraceID = "X-Trace-ID"
)

// httpMetrics are recorded per route template, so /api/v1/quotes?category=x
// and ?category=y share a series.
type httpMetrics struct {
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of quote API requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Quote API requests in flight"),
	)
	if err != nil {
		return nil, err
	}

	return &httpMetrics{duration: duration, inFlight: inFlight}, nil
}

// Middleware returns the otelgin tracing handler followed by one that echoes
// the trace ID and records request metrics.
//
//	router.Use(telemetry.Middleware("quote-sync")...)
func Middleware(serviceName string) []gin.HandlerFunc {
	metrics, err := newHTTPMetrics(otel.Meter(instrumentationName))
	if err != nil {
		otel.Handle(err)
	}

	return []gin.HandlerFunc{otelgin.Middleware(serviceName), metrics.handler}
}

func (m *httpMetrics) handler(c *gin.Context) {
	ctx := c.Request.Context()

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		c.Header(HeaderTraceID, sc.TraceID().String())
	}

	if m == nil {
		c.Next()
		return
	}

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}

	base := []attribute.KeyValue{
		attribute.String("http.request.method", c.Request.Method),
		attribute.String("http.route", route),
	}

	m.inFlight.Add(ctx, 1, metric.WithAttributes(base...))
	defer m.inFlight.Add(ctx, -1, metric.WithAttributes(base...))

	start := time.Now()

	c.Next()

	m.duration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(append(base, attribute.Int("http.response.status_code", c.Writer.Status()))...))
}
